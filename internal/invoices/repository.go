package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/quotations"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices and payments.
type Repository struct {
	pool        *pgxpool.Pool
	idempotency *shared.IdempotencyStore
	audit       *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, idempotency *shared.IdempotencyStore, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, idempotency: idempotency, audit: audit}
}

// TxRepository exposes the operations available inside a write transaction.
type TxRepository interface {
	numbering.Store
	numbering.Directory
	// ReserveKey claims an idempotency key. replayID is set when an earlier
	// request with the same key already completed.
	ReserveKey(ctx context.Context, key, module string) (replayID int64, replay bool, err error)
	CompleteKey(ctx context.Context, key, module string, resourceID int64) error
	LockQuotation(ctx context.Context, id int64) (quotations.Quotation, error)
	LinkQuotation(ctx context.Context, quotationID, invoiceID int64) error
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
	Lock(ctx context.Context, id int64) (Invoice, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	Audit(ctx context.Context, log shared.AuditLog) error
}

type txRepo struct {
	*numbering.PGStore
	*numbering.PGDirectory
	tx          pgx.Tx
	idempotency *shared.IdempotencyStore
	audit       *shared.AuditLogger
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.WriteTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			PGStore:     numbering.NewPGStore(tx),
			PGDirectory: numbering.NewPGDirectory(tx),
			tx:          tx,
			idempotency: r.idempotency.WithQuerier(tx),
			audit:       r.audit.WithQuerier(tx),
		})
	})
}

const paidSubquery = `LEFT JOIN (SELECT invoice_id, SUM(amount) AS paid FROM payments GROUP BY invoice_id) p ON p.invoice_id = i.id`

const invoiceColumns = `i.id, i.number, i.quotation_id, i.shop_id, i.customer_id, COALESCE(c.name, ''),
i.apply_levy, i.levy_percentage, i.vat_percentage,
i.gross_total, i.levy_amount, i.amount_before_vat, i.vat_amount, i.net_total,
i.notes, i.issue_date, i.due_date, i.sent_at, i.created_by, i.created_at, i.updated_at,
COALESCE(p.paid, 0)`

const invoiceFrom = `FROM invoices i LEFT JOIN customers c ON c.id = i.customer_id ` + paidSubquery

// statusExpr mirrors DeriveStatus so listings can filter on it. $1 is today.
const statusExpr = `CASE
WHEN COALESCE(p.paid, 0) >= i.net_total AND (i.net_total > 0 OR COALESCE(p.paid, 0) > 0) THEN 'PAID'
WHEN i.sent_at IS NOT NULL AND i.net_total - COALESCE(p.paid, 0) > 0 AND i.due_date < $1 THEN 'OVERDUE'
WHEN COALESCE(p.paid, 0) > 0 THEN 'PARTIALLY_PAID'
WHEN i.sent_at IS NOT NULL THEN 'SENT'
ELSE 'DRAFT' END`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.QuotationID, &inv.ShopID, &inv.CustomerID, &inv.CustomerName,
		&inv.Tax.ApplyLevy, &inv.Tax.LevyPercentage, &inv.Tax.VATPercentage,
		&inv.Totals.GrossTotal, &inv.Totals.LevyAmount, &inv.Totals.AmountBeforeVAT, &inv.Totals.VATAmount, &inv.Totals.NetTotal,
		&inv.Notes, &inv.IssueDate, &inv.DueDate, &inv.SentAt, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
		&inv.Paid)
	return inv, err
}

const paymentColumns = `id, receipt_number, invoice_id, amount, paid_at, method, reference, note, created_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p      Payment
		method string
	)
	err := row.Scan(&p.ID, &p.ReceiptNumber, &p.InvoiceID, &p.Amount, &p.PaidAt, &method, &p.Reference, &p.Note, &p.CreatedBy, &p.CreatedAt)
	p.Method = PaymentMethod(method)
	return p, err
}

func getInvoice(ctx context.Context, q shared.Querier, id int64) (Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, `SELECT `+invoiceColumns+` `+invoiceFrom+` WHERE i.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice %d not found", id)
	}
	if err != nil {
		return Invoice{}, db.Classify("get invoice", err)
	}
	rows, err := q.Query(ctx, `SELECT id, position, product_id, description, quantity, rate, line_total
FROM invoice_items WHERE invoice_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return Invoice{}, db.Classify("load invoice items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Position, &it.ProductID, &it.Description, &it.Quantity, &it.Rate, &it.LineTotal); err != nil {
			return Invoice{}, db.Classify("scan invoice item", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, db.Classify("load invoice items", rows.Err())
}

func (t *txRepo) ReserveKey(ctx context.Context, key, module string) (int64, bool, error) {
	id, found, err := t.idempotency.Lookup(ctx, key, module)
	if err != nil {
		return 0, false, db.Classify("lookup idempotency key", err)
	}
	if found {
		return id, true, nil
	}
	if err := t.idempotency.CheckAndInsert(ctx, key, module); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return 0, false, shared.Conflictf("a request with this idempotency key is already being processed")
		}
		return 0, false, db.Classify("reserve idempotency key", err)
	}
	return 0, false, nil
}

func (t *txRepo) CompleteKey(ctx context.Context, key, module string, resourceID int64) error {
	return db.Classify("complete idempotency key", t.idempotency.Complete(ctx, key, module, resourceID))
}

func (t *txRepo) LockQuotation(ctx context.Context, id int64) (quotations.Quotation, error) {
	return quotations.LockForInvoice(ctx, t.tx, id)
}

func (t *txRepo) LinkQuotation(ctx context.Context, quotationID, invoiceID int64) error {
	return quotations.LinkInvoice(ctx, t.tx, quotationID, invoiceID)
}

func (t *txRepo) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (number, quotation_id, shop_id, customer_id,
apply_levy, levy_percentage, vat_percentage,
gross_total, levy_amount, amount_before_vat, vat_amount, net_total,
notes, issue_date, due_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id, created_at, updated_at`,
		inv.Number, inv.QuotationID, inv.ShopID, inv.CustomerID,
		inv.Tax.ApplyLevy, inv.Tax.LevyPercentage, inv.Tax.VATPercentage,
		inv.Totals.GrossTotal, inv.Totals.LevyAmount, inv.Totals.AmountBeforeVAT, inv.Totals.VATAmount, inv.Totals.NetTotal,
		inv.Notes, inv.IssueDate, inv.DueDate, inv.CreatedBy).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, db.Classify("insert invoice", err)
	}
	batch := &pgx.Batch{}
	for _, it := range inv.Items {
		batch.Queue(`INSERT INTO invoice_items (invoice_id, position, product_id, description, quantity, rate, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, inv.ID, it.Position, it.ProductID, it.Description, it.Quantity, it.Rate, it.LineTotal)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range inv.Items {
		if _, err := br.Exec(); err != nil {
			return Invoice{}, db.Classify("insert invoice item", err)
		}
	}
	return inv, nil
}

// Lock takes the invoice row lock first, then reads the paid amount, so two
// payments on one invoice are serialised.
func (t *txRepo) Lock(ctx context.Context, id int64) (Invoice, error) {
	var locked int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice %d not found", id)
	}
	if err != nil {
		return Invoice{}, db.Classify("lock invoice", err)
	}
	return getInvoice(ctx, t.tx, id)
}

func (t *txRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET sent_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return db.Classify("mark invoice sent", err)
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return db.Classify("delete invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %d not found", id)
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	created, err := scanPayment(t.tx.QueryRow(ctx, `INSERT INTO payments (receipt_number, invoice_id, amount, paid_at, method, reference, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+paymentColumns, p.ReceiptNumber, p.InvoiceID, p.Amount, p.PaidAt, string(p.Method), p.Reference, p.Note, p.CreatedBy))
	if err != nil {
		return Payment{}, db.Classify("insert payment", err)
	}
	return created, nil
}

func (t *txRepo) Audit(ctx context.Context, log shared.AuditLog) error {
	if err := t.audit.Record(ctx, log); err != nil {
		return db.Classify("record audit", err)
	}
	return nil
}

// Get loads an invoice with its items and paid amount.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.pool, id)
}

// List returns a filtered page of invoice headers. today anchors the derived
// status used by the status filter.
func (r *Repository) List(ctx context.Context, filter ListFilter, today time.Time) ([]Invoice, int, error) {
	args := []any{today}
	var conditions []string
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("i.customer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("(%s) = $%d", statusExpr, len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf("(i.number ILIKE $%d OR c.name ILIKE $%d)", len(args), len(args)))
	}
	// $1 is always bound; the placeholder keeps arguments aligned when no
	// status filter references it.
	where := "WHERE $1::date IS NOT NULL"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+invoiceFrom+" "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify("count invoices", err)
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY i.issue_date DESC, i.id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, invoiceFrom, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify("list invoices", err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, db.Classify("scan invoice", err)
		}
		out = append(out, inv)
	}
	return out, total, db.Classify("list invoices", rows.Err())
}

// ListPayments returns the payments of an invoice in the order received.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, db.Classify("list payments", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, db.Classify("scan payment", err)
		}
		out = append(out, p)
	}
	return out, db.Classify("list payments", rows.Err())
}

// GetPayment loads a single payment.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, shared.NotFoundf("payment %d not found", id)
	}
	if err != nil {
		return Payment{}, db.Classify("get payment", err)
	}
	return p, nil
}

// OverdueSummary counts sent invoices past their due date with an unpaid
// balance and sums that balance.
func (r *Repository) OverdueSummary(ctx context.Context, today time.Time) (int, decimal.Decimal, error) {
	var (
		count   int
		balance decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(i.net_total - COALESCE(p.paid, 0)), 0)
FROM invoices i `+paidSubquery+`
WHERE (`+statusExpr+`) = 'OVERDUE'`, today).Scan(&count, &balance)
	if err != nil {
		return 0, decimal.Zero, db.Classify("summarise overdue invoices", err)
	}
	return count, balance, nil
}
