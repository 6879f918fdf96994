package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a business object held in the document store.
// Identity is immutable: the engine never mutates entities, it only reads them.
type Entity struct {
	// EntityID is the unique identifier, e.g. "prod-1042" or "cust-88".
	EntityID string `json:"entity_id"`

	// Kind distinguishes the two entity populations.
	Kind string `json:"kind"` // "product" or "customer"

	// Category is the product category id. Empty for customers.
	Category string `json:"category,omitempty"`

	// BasePrice is the catalog price. Zero for customers.
	BasePrice decimal.Decimal `json:"base_price,omitempty"`

	// Attributes carries any additional document fields the analyses don't need
	// structurally (name, geo data, registration date, ...).
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

const (
	KindProduct  = "product"
	KindCustomer = "customer"
)

// Validate ensures the entity carries its identity fields.
func (e *Entity) Validate() error {
	if e.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if e.Kind != KindProduct && e.Kind != KindCustomer {
		return fmt.Errorf("invalid kind %q (must be product or customer)", e.Kind)
	}
	return nil
}

// LineItem is one product position inside a transaction.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity x unit price, computed in exact decimal arithmetic.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// Transaction is an order held in the document store. The set of distinct
// products across its items forms the "basket" for co-occurrence analysis.
type Transaction struct {
	// ID is the transaction identifier and the basket identity.
	ID string `json:"transaction_id"`

	// CustomerID identifies the buying customer.
	CustomerID string `json:"customer_id"`

	// Items is the ordered list of purchased positions. A transaction with
	// multiple distinct products is a multi-product basket.
	Items []LineItem `json:"items"`

	// OccurredAt is the client-side purchase timestamp.
	OccurredAt time.Time `json:"occurred_at"`

	// IngestSeq is a monotonic sequence number assigned by the document store.
	// Set by database (BIGSERIAL), not exposed in the public API.
	IngestSeq int64 `json:"-"`
}

// Total is the exact transaction value: sum of item subtotals.
func (t *Transaction) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range t.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Validate ensures the transaction has all required fields.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if t.CustomerID == "" {
		return fmt.Errorf("customer_id is required")
	}
	if len(t.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	for i, li := range t.Items {
		if li.ProductID == "" {
			return fmt.Errorf("items[%d].product_id is required", i)
		}
		if li.Quantity <= 0 {
			return fmt.Errorf("items[%d].quantity must be > 0", i)
		}
		if li.UnitPrice.IsNegative() {
			return fmt.Errorf("items[%d].unit_price must not be negative", i)
		}
	}
	if t.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// SessionEvent is one row of the session log, held in the wide-column store
// under the composite row key (customer_id, started_at, session_id). Rows for
// one customer are therefore time-ordered and reachable by prefix scan.
type SessionEvent struct {
	// CustomerID is the join key against the document-store summaries.
	CustomerID string `json:"customer_id"`

	// SessionID distinguishes sessions that start in the same instant.
	SessionID string `json:"session_id"`

	// EventType is the domain event name, e.g. "session.completed".
	EventType string `json:"event_type"`

	// StartedAt is the session start, the time component of the row key.
	StartedAt time.Time `json:"started_at"`

	// DurationSeconds is the session length. Feeds the engagement score.
	DurationSeconds int64 `json:"duration_seconds"`
}

// Validate ensures the event has all row-key components.
func (s *SessionEvent) Validate() error {
	if s.CustomerID == "" {
		return fmt.Errorf("customer_id is required")
	}
	if s.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if s.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if s.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	if s.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds must not be negative")
	}
	return nil
}
