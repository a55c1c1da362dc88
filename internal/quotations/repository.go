package quotations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for quotations.
type Repository struct {
	pool      *pgxpool.Pool
	approvals *shared.ApprovalRecorder
	audit     *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, approvals *shared.ApprovalRecorder, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, approvals: approvals, audit: audit}
}

// TxRepository exposes the operations available inside a write transaction.
type TxRepository interface {
	numbering.Store
	numbering.Directory
	Lock(ctx context.Context, id int64) (Quotation, error)
	Insert(ctx context.Context, q Quotation) (Quotation, error)
	UpdateDraft(ctx context.Context, q Quotation) error
	ReplaceItems(ctx context.Context, quotationID int64, items []Item) error
	UpdateStatus(ctx context.Context, change StatusChange) error
	Delete(ctx context.Context, id int64) error
	RecordApproval(ctx context.Context, log shared.ApprovalLog) error
	Audit(ctx context.Context, log shared.AuditLog) error
}

type txRepo struct {
	*numbering.PGStore
	*numbering.PGDirectory
	tx        pgx.Tx
	approvals *shared.ApprovalRecorder
	audit     *shared.AuditLogger
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.WriteTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			PGStore:     numbering.NewPGStore(tx),
			PGDirectory: numbering.NewPGDirectory(tx),
			tx:          tx,
			approvals:   r.approvals.WithQuerier(tx),
			audit:       r.audit.WithQuerier(tx),
		})
	})
}

const quotationColumns = `q.id, q.ref, q.number, q.shop_id, q.customer_id, COALESCE(c.name, ''), q.status,
q.apply_levy, q.levy_percentage, q.vat_percentage,
q.gross_total, q.levy_amount, q.amount_before_vat, q.vat_amount, q.net_total,
q.notes, q.valid_until, q.created_by, q.submitted_at, q.approved_by, q.approved_at,
q.rejected_by, q.rejected_at, COALESCE(q.rejection_reason, ''), q.invoice_id, q.created_at, q.updated_at`

const quotationFrom = `FROM quotations q LEFT JOIN customers c ON c.id = q.customer_id`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var (
		q      Quotation
		status string
	)
	err := row.Scan(&q.ID, &q.Ref, &q.Number, &q.ShopID, &q.CustomerID, &q.CustomerName, &status,
		&q.Tax.ApplyLevy, &q.Tax.LevyPercentage, &q.Tax.VATPercentage,
		&q.Totals.GrossTotal, &q.Totals.LevyAmount, &q.Totals.AmountBeforeVAT, &q.Totals.VATAmount, &q.Totals.NetTotal,
		&q.Notes, &q.ValidUntil, &q.CreatedBy, &q.SubmittedAt, &q.ApprovedBy, &q.ApprovedAt,
		&q.RejectedBy, &q.RejectedAt, &q.RejectionReason, &q.InvoiceID, &q.CreatedAt, &q.UpdatedAt)
	q.Status = Status(status)
	return q, err
}

func getQuotation(ctx context.Context, q shared.Querier, id int64, lock bool) (Quotation, error) {
	query := `SELECT ` + quotationColumns + ` ` + quotationFrom + ` WHERE q.id = $1`
	if lock {
		query += ` FOR UPDATE OF q`
	}
	quote, err := scanQuotation(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, shared.NotFoundf("quotation %d not found", id)
	}
	if err != nil {
		return Quotation{}, db.Classify("get quotation", err)
	}
	items, err := loadItems(ctx, q, id)
	if err != nil {
		return Quotation{}, err
	}
	quote.Items = items
	return quote, nil
}

func loadItems(ctx context.Context, q shared.Querier, quotationID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, position, product_id, description, quantity, rate, line_total
FROM quotation_items WHERE quotation_id = $1 ORDER BY position, id`, quotationID)
	if err != nil {
		return nil, db.Classify("load quotation items", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Position, &it.ProductID, &it.Description, &it.Quantity, &it.Rate, &it.LineTotal); err != nil {
			return nil, db.Classify("scan quotation item", err)
		}
		items = append(items, it)
	}
	return items, db.Classify("load quotation items", rows.Err())
}

func insertItems(ctx context.Context, tx pgx.Tx, quotationID int64, items []Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO quotation_items (quotation_id, position, product_id, description, quantity, rate, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, quotationID, it.Position, it.ProductID, it.Description, it.Quantity, it.Rate, it.LineTotal)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range items {
		if _, err := br.Exec(); err != nil {
			return db.Classify("insert quotation item", err)
		}
	}
	return nil
}

// LockForInvoice loads a quotation with its items and locks its row in the
// transaction behind q, so a concurrent conversion waits.
func LockForInvoice(ctx context.Context, q shared.Querier, id int64) (Quotation, error) {
	return getQuotation(ctx, q, id, true)
}

// LinkInvoice records the invoice produced from a quotation. It fails with a
// conflict when the quotation was already invoiced.
func LinkInvoice(ctx context.Context, q shared.Querier, quotationID, invoiceID int64) error {
	tag, err := q.Exec(ctx, `UPDATE quotations SET invoice_id = $2, updated_at = NOW()
WHERE id = $1 AND invoice_id IS NULL`, quotationID, invoiceID)
	if err != nil {
		return db.Classify("link invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("quotation %d has already been invoiced", quotationID)
	}
	return nil
}

func (t *txRepo) Lock(ctx context.Context, id int64) (Quotation, error) {
	return getQuotation(ctx, t.tx, id, true)
}

func (t *txRepo) Insert(ctx context.Context, q Quotation) (Quotation, error) {
	if q.Ref == uuid.Nil {
		q.Ref = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `INSERT INTO quotations (ref, number, shop_id, customer_id, status,
apply_levy, levy_percentage, vat_percentage,
gross_total, levy_amount, amount_before_vat, vat_amount, net_total,
notes, valid_until, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id, created_at, updated_at`,
		q.Ref, q.Number, q.ShopID, q.CustomerID, string(q.Status),
		q.Tax.ApplyLevy, q.Tax.LevyPercentage, q.Tax.VATPercentage,
		q.Totals.GrossTotal, q.Totals.LevyAmount, q.Totals.AmountBeforeVAT, q.Totals.VATAmount, q.Totals.NetTotal,
		q.Notes, q.ValidUntil, q.CreatedBy).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Quotation{}, db.Classify("insert quotation", err)
	}
	if err := insertItems(ctx, t.tx, q.ID, q.Items); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (t *txRepo) UpdateDraft(ctx context.Context, q Quotation) error {
	_, err := t.tx.Exec(ctx, `UPDATE quotations SET customer_id = $2,
apply_levy = $3, levy_percentage = $4, vat_percentage = $5,
gross_total = $6, levy_amount = $7, amount_before_vat = $8, vat_amount = $9, net_total = $10,
notes = $11, valid_until = $12, updated_at = NOW()
WHERE id = $1`, q.ID, q.CustomerID,
		q.Tax.ApplyLevy, q.Tax.LevyPercentage, q.Tax.VATPercentage,
		q.Totals.GrossTotal, q.Totals.LevyAmount, q.Totals.AmountBeforeVAT, q.Totals.VATAmount, q.Totals.NetTotal,
		q.Notes, q.ValidUntil)
	return db.Classify("update quotation", err)
}

func (t *txRepo) ReplaceItems(ctx context.Context, quotationID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, quotationID); err != nil {
		return db.Classify("clear quotation items", err)
	}
	return insertItems(ctx, t.tx, quotationID, items)
}

func (t *txRepo) UpdateStatus(ctx context.Context, change StatusChange) error {
	var query string
	args := []any{change.ID, string(change.Status), change.At}
	switch change.Status {
	case StatusSubmitted:
		query = `UPDATE quotations SET status = $2, submitted_at = $3, updated_at = NOW() WHERE id = $1`
	case StatusApproved:
		query = `UPDATE quotations SET status = $2, approved_at = $3, approved_by = $4, updated_at = NOW() WHERE id = $1`
		args = append(args, change.Actor.UserID)
	case StatusRejected:
		query = `UPDATE quotations SET status = $2, rejected_at = $3, rejected_by = $4, rejection_reason = $5, updated_at = NOW() WHERE id = $1`
		args = append(args, change.Actor.UserID, change.Reason)
	default:
		return shared.Validationf("unsupported quotation status %q", change.Status)
	}
	_, err := t.tx.Exec(ctx, query, args...)
	return db.Classify("update quotation status", err)
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
	if err != nil {
		return db.Classify("delete quotation", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("quotation %d not found", id)
	}
	return nil
}

func (t *txRepo) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	if err := t.approvals.Record(ctx, log); err != nil {
		return db.Classify("record approval", err)
	}
	return nil
}

func (t *txRepo) Audit(ctx context.Context, log shared.AuditLog) error {
	if err := t.audit.Record(ctx, log); err != nil {
		return db.Classify("record audit", err)
	}
	return nil
}

// Get loads a quotation with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Quotation, error) {
	return getQuotation(ctx, r.pool, id, false)
}

// List returns a filtered page of quotation headers and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("q.status = $%d", string(filter.Status))
	}
	if filter.CustomerID != nil {
		add("q.customer_id = $%d", *filter.CustomerID)
	}
	if filter.ShopID != nil {
		add("q.shop_id = $%d", *filter.ShopID)
	}
	if filter.From != nil {
		add("q.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("q.created_at < $%d", filter.To.AddDate(0, 0, 1))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf("(q.number ILIKE $%d OR c.name ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+quotationFrom+" "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify("count quotations", err)
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY q.created_at DESC, q.id DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, quotationFrom, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify("list quotations", err)
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, db.Classify("scan quotation", err)
		}
		out = append(out, q)
	}
	return out, total, db.Classify("list quotations", rows.Err())
}

// History returns the approval trail of a quotation.
func (r *Repository) History(ctx context.Context, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	logs, err := r.approvals.List(ctx, ApprovalModule, ref)
	if err != nil {
		return nil, db.Classify("list approvals", err)
	}
	return logs, nil
}
