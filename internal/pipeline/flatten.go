package pipeline

import (
	"context"

	"github.com/shopspring/decimal"
	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/core/source"
)

// txItem is a transaction exploded to line-item granularity, the record shape
// the category revenue aggregation groups over.
type txItem struct {
	Category   string
	ProductID  string
	CustomerID string
	Subtotal   decimal.Decimal
}

// itemCursor adapts a transaction cursor to line-item granularity, resolving
// each item's category through the product catalog. Lazy: it holds at most
// one transaction's items in memory.
type itemCursor struct {
	tx         source.Cursor[v1.Transaction]
	categoryOf func(productID string) string
	pending    []txItem
}

// uncategorized buckets items whose product is missing from the catalog, so
// their revenue is never silently dropped.
const uncategorized = "uncategorized"

func flattenItems(tx source.Cursor[v1.Transaction], categoryOf func(string) string) *itemCursor {
	return &itemCursor{tx: tx, categoryOf: categoryOf}
}

func (c *itemCursor) Next(ctx context.Context) (txItem, bool, error) {
	for len(c.pending) == 0 {
		tx, ok, err := c.tx.Next(ctx)
		if err != nil || !ok {
			return txItem{}, false, err
		}
		for _, li := range tx.Items {
			category := c.categoryOf(li.ProductID)
			if category == "" {
				category = uncategorized
			}
			c.pending = append(c.pending, txItem{
				Category:   category,
				ProductID:  li.ProductID,
				CustomerID: tx.CustomerID,
				Subtotal:   li.Subtotal(),
			})
		}
	}
	item := c.pending[0]
	c.pending = c.pending[1:]
	return item, true, nil
}

func (c *itemCursor) Skipped() int { return c.tx.Skipped() }

func (c *itemCursor) Close() error { return c.tx.Close() }
