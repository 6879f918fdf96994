package v1

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func validTransaction() *Transaction {
	return &Transaction{
		ID:         "tx-1",
		CustomerID: "cust-1",
		Items: []LineItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: "prod-2", Quantity: 1, UnitPrice: decimal.NewFromFloat(5.50)},
		},
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr string
	}{
		{name: "valid", mutate: func(tx *Transaction) {}},
		{
			name:    "missing id",
			mutate:  func(tx *Transaction) { tx.ID = "" },
			wantErr: "transaction_id is required",
		},
		{
			name:    "missing customer",
			mutate:  func(tx *Transaction) { tx.CustomerID = "" },
			wantErr: "customer_id is required",
		},
		{
			name:    "empty items",
			mutate:  func(tx *Transaction) { tx.Items = nil },
			wantErr: "items must not be empty",
		},
		{
			name:    "zero quantity",
			mutate:  func(tx *Transaction) { tx.Items[1].Quantity = 0 },
			wantErr: "items[1].quantity must be > 0",
		},
		{
			name:    "negative price",
			mutate:  func(tx *Transaction) { tx.Items[0].UnitPrice = decimal.NewFromInt(-1) },
			wantErr: "items[0].unit_price must not be negative",
		},
		{
			name:    "missing timestamp",
			mutate:  func(tx *Transaction) { tx.OccurredAt = time.Time{} },
			wantErr: "occurred_at is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransaction()
			tc.mutate(tx)
			err := tx.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestTransaction_Total(t *testing.T) {
	tx := validTransaction()
	// 2*10 + 1*5.50
	require.True(t, decimal.NewFromFloat(25.50).Equal(tx.Total()))
}

func TestSessionEvent_Validate(t *testing.T) {
	evt := SessionEvent{
		CustomerID:      "cust-1",
		SessionID:       "sess-1",
		EventType:       "session.completed",
		StartedAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		DurationSeconds: 120,
	}
	require.NoError(t, evt.Validate())

	missing := evt
	missing.SessionID = ""
	require.ErrorContains(t, missing.Validate(), "session_id is required")

	negative := evt
	negative.DurationSeconds = -1
	require.ErrorContains(t, negative.Validate(), "duration_seconds must not be negative")
}

func TestEntity_Validate(t *testing.T) {
	ent := Entity{EntityID: "prod-1", Kind: KindProduct, Category: "cat-1"}
	require.NoError(t, ent.Validate())

	ent.Kind = "warehouse"
	require.ErrorContains(t, ent.Validate(), "invalid kind")
}
