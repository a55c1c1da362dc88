package statements

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository reads statement activity from the invoice and payment tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the customer, the balance brought forward and the activity in
// period from a single snapshot.
func (r *Repository) Load(ctx context.Context, customerID int64, period Period) (Snapshot, error) {
	var snap Snapshot
	err := db.WithTxOptions(ctx, r.pool, db.SnapshotTxOptions, func(tx pgx.Tx) error {
		var err error
		if snap.Customer, err = loadCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		if snap.Opening, err = openingBalance(ctx, tx, customerID, period.From); err != nil {
			return err
		}
		snap.Entries, err = loadEntries(ctx, tx, customerID, period)
		return err
	})
	return snap, err
}

func loadCustomer(ctx context.Context, q shared.Querier, id int64) (Customer, error) {
	var c Customer
	err := q.QueryRow(ctx, `SELECT id, code, name, tpin, email, phone, address FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.TPIN, &c.Email, &c.Phone, &c.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFoundf("customer %d not found", id)
	}
	return c, db.Classify("load statement customer", err)
}

func openingBalance(ctx context.Context, q shared.Querier, customerID int64, from time.Time) (decimal.Decimal, error) {
	var opening decimal.Decimal
	err := q.QueryRow(ctx, `SELECT
	COALESCE((SELECT SUM(net_total) FROM invoices WHERE customer_id = $1 AND issue_date < $2), 0)
	- COALESCE((SELECT SUM(p.amount) FROM payments p JOIN invoices i ON i.id = p.invoice_id
		WHERE i.customer_id = $1 AND p.paid_at < $2), 0)`, customerID, from).Scan(&opening)
	return opening, db.Classify("statement opening balance", err)
}

func loadEntries(ctx context.Context, q shared.Querier, customerID int64, period Period) ([]Entry, error) {
	rows, err := q.Query(ctx, `SELECT 'invoice', i.id, i.issue_date, i.number, 'Invoice due ' || to_char(i.due_date, 'YYYY-MM-DD'), i.net_total, 0::numeric
FROM invoices i
WHERE i.customer_id = $1 AND i.issue_date BETWEEN $2 AND $3
UNION ALL
SELECT 'payment', p.id, p.paid_at, p.receipt_number, 'Payment for ' || i.number, 0::numeric, p.amount
FROM payments p JOIN invoices i ON i.id = p.invoice_id
WHERE i.customer_id = $1 AND p.paid_at BETWEEN $2 AND $3`, customerID, period.From, period.To)
	if err != nil {
		return nil, db.Classify("load statement entries", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&kind, &e.DocumentID, &e.Date, &e.Reference, &e.Description, &e.Debit, &e.Credit); err != nil {
			return nil, db.Classify("scan statement entry", err)
		}
		e.Kind = EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, db.Classify("load statement entries", rows.Err())
}
