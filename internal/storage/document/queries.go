package document

// SQL for the document store. The two scans are assembled dynamically from a
// QuerySpec (conjunctive filters over whitelisted fields), so only the
// inserts are prepared up front.

const (
	// querySaveEntity inserts a business entity. Entities are immutable:
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicates.
	querySaveEntity = `
		INSERT INTO entities (entity_id, kind, category, base_price, attributes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_id) DO NOTHING
		RETURNING entity_id
	`

	// querySaveTransaction inserts a transaction with its line items as a
	// JSONB document. RETURNING retrieves the auto-generated ingest_seq.
	querySaveTransaction = `
		INSERT INTO transactions (transaction_id, customer_id, occurred_at, items)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING ingest_seq
	`

	// queryScanEntities is the base of the entity scan; conjunctive filter
	// clauses are appended as "AND <column> <op> $n". Ordered by entity_id
	// for deterministic iteration.
	queryScanEntities = `
		SELECT entity_id, kind, category, base_price, attributes
		FROM entities
		WHERE 1=1
	`

	// queryScanTransactions is the base of the transaction scan. Ordered by
	// ingest_seq so repeated scans of one snapshot yield identical order.
	queryScanTransactions = `
		SELECT transaction_id, customer_id, occurred_at, items, ingest_seq
		FROM transactions
		WHERE 1=1
	`
)

// entityFilterColumns whitelists QuerySpec filter fields for the entity scan.
// Anything else is rejected before SQL assembly.
var entityFilterColumns = map[string]string{
	"entity_id": "entity_id",
	"kind":      "kind",
	"category":  "category",
}

// transactionFilterColumns whitelists filter fields for the transaction scan.
var transactionFilterColumns = map[string]string{
	"transaction_id": "transaction_id",
	"customer_id":    "customer_id",
	"occurred_at":    "occurred_at",
}
