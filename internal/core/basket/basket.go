// Package basket computes pairwise co-occurrence statistics over transaction
// baskets: for every basket with at least two distinct products, all C(n,2)
// unordered product pairs are counted.
//
// Cost is O(sum of basket_size^2) across baskets. MaxBasketSize bounds that
// quadratic term against corrupt data: an oversized basket contributes no
// pairs and is counted as skipped instead of failing the pass.
package basket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/core/source"
)

// ErrBasketTooLarge marks a basket whose distinct-product count exceeds the
// configured maximum.
var ErrBasketTooLarge = errors.New("basket exceeds maximum size")

// DefaultMaxBasketSize caps distinct products per basket. A basket at the cap
// still costs ~125k pair increments, which is the largest we accept from one
// transaction record.
const DefaultMaxBasketSize = 500

// CoOccurrencePair is an unordered product pair with the number of baskets
// containing both. The pair is canonicalized: ProductA < ProductB always, so
// (A,B) and (B,A) are never distinct keys, and self-pairs cannot exist.
type CoOccurrencePair struct {
	ProductA string `json:"product_a"`
	ProductB string `json:"product_b"`
	Count    int64  `json:"count"`
}

// Result is a co-occurrence pass output.
type Result struct {
	// Pairs is sorted by count descending, then pair ascending, so repeated
	// runs over the same snapshot are byte-identical.
	Pairs []CoOccurrencePair

	// SkippedBaskets counts baskets dropped for exceeding MaxBasketSize.
	SkippedBaskets int

	// SkippedRecords counts undecodable transaction records reported by the
	// source cursor.
	SkippedRecords int
}

// Analyzer computes co-occurrence passes.
type Analyzer struct {
	// MaxBasketSize is the distinct-product cap per basket. Zero or negative
	// means DefaultMaxBasketSize.
	MaxBasketSize int
}

func (a Analyzer) maxBasketSize() int {
	if a.MaxBasketSize <= 0 {
		return DefaultMaxBasketSize
	}
	return a.MaxBasketSize
}

// checkSize returns an error wrapping ErrBasketTooLarge when a basket with n
// distinct products exceeds the cap, nil otherwise.
func (a Analyzer) checkSize(n int) error {
	if max := a.maxBasketSize(); n > max {
		return fmt.Errorf("%w: %d distinct products (max %d)", ErrBasketTooLarge, n, max)
	}
	return nil
}

type pairKey struct {
	a, b string
}

// PairwiseCooccurrence consumes a transaction cursor and counts unordered
// product pairs per basket. The basket identity is the transaction id; the
// basket itself is the set of distinct products among the items. Baskets with
// a single product contribute no pairs.
//
// The cursor is closed before returning.
func (a Analyzer) PairwiseCooccurrence(ctx context.Context, cur source.Cursor[v1.Transaction]) (Result, error) {
	defer cur.Close()

	counts := make(map[pairKey]int64)
	skippedBaskets := 0

	for {
		tx, ok, err := cur.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		products := distinctProducts(tx)
		if err := a.checkSize(len(products)); err != nil {
			// Skip and count, never crash the pass.
			skippedBaskets++
			slog.Warn("[Basket] Skipping oversized basket",
				"transaction_id", tx.ID,
				"error", err)
			continue
		}
		if len(products) < 2 {
			continue
		}

		sort.Strings(products)
		for i := 0; i < len(products); i++ {
			for j := i + 1; j < len(products); j++ {
				counts[pairKey{a: products[i], b: products[j]}]++
			}
		}
	}

	pairs := make([]CoOccurrencePair, 0, len(counts))
	for key, count := range counts {
		pairs = append(pairs, CoOccurrencePair{ProductA: key.a, ProductB: key.b, Count: count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].ProductA != pairs[j].ProductA {
			return pairs[i].ProductA < pairs[j].ProductA
		}
		return pairs[i].ProductB < pairs[j].ProductB
	})

	return Result{
		Pairs:          pairs,
		SkippedBaskets: skippedBaskets,
		SkippedRecords: cur.Skipped(),
	}, nil
}

func distinctProducts(tx v1.Transaction) []string {
	seen := make(map[string]struct{}, len(tx.Items))
	products := make([]string, 0, len(tx.Items))
	for _, li := range tx.Items {
		if li.ProductID == "" {
			continue
		}
		if _, ok := seen[li.ProductID]; ok {
			continue
		}
		seen[li.ProductID] = struct{}{}
		products = append(products, li.ProductID)
	}
	return products
}
