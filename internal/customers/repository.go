package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that run inside a create transaction.
type TxRepository interface {
	numbering.Store
	CodeExists(ctx context.Context, code string, exceptID int64) (bool, error)
	Insert(ctx context.Context, c Customer) (Customer, error)
}

type txRepo struct {
	*numbering.PGStore
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.WriteTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{PGStore: numbering.NewPGStore(tx), tx: tx})
	})
}

const customerColumns = `id, code, name, tpin, email, phone, address, is_active, COALESCE(created_by, 0), created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.TPIN, &c.Email, &c.Phone, &c.Address,
		&c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func codeExists(ctx context.Context, q shared.Querier, code string, exceptID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE code = $1 AND id <> $2)`, code, exceptID).Scan(&exists)
	if err != nil {
		return false, db.Classify("check customer code", err)
	}
	return exists, nil
}

func (t *txRepo) CodeExists(ctx context.Context, code string, exceptID int64) (bool, error) {
	return codeExists(ctx, t.tx, code, exceptID)
}

func (t *txRepo) Insert(ctx context.Context, c Customer) (Customer, error) {
	var createdBy *int64
	if c.CreatedBy > 0 {
		createdBy = &c.CreatedBy
	}
	created, err := scanCustomer(t.tx.QueryRow(ctx, `INSERT INTO customers (code, name, tpin, email, phone, address, is_active, created_by)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
RETURNING `+customerColumns, c.Code, c.Name, c.TPIN, c.Email, c.Phone, c.Address, createdBy))
	if err != nil {
		return Customer{}, db.Classify("create customer", err)
	}
	return created, nil
}

// CodeExists reports whether another customer already uses code.
func (r *Repository) CodeExists(ctx context.Context, code string, exceptID int64) (bool, error) {
	return codeExists(ctx, r.pool, code, exceptID)
}

// Get loads a customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFoundf("customer %d not found", id)
	}
	if err != nil {
		return Customer{}, db.Classify("get customer", err)
	}
	return c, nil
}

// List returns a filtered page of customers and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d OR tpin ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify("count customers", err)
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		customerColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify("list customers", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, db.Classify("scan customer", err)
		}
		out = append(out, c)
	}
	return out, total, db.Classify("list customers", rows.Err())
}

// Search returns active customers whose code, name or TPIN starts with or
// contains term, best prefix matches first.
func (r *Repository) Search(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, tpin FROM customers
WHERE is_active AND (code ILIKE $1 OR name ILIKE $1 OR tpin ILIKE $1)
ORDER BY (code ILIKE $2 OR name ILIKE $2) DESC, name
LIMIT $3`, "%"+term+"%", term+"%", limit)
	if err != nil {
		return nil, db.Classify("search customers", err)
	}
	defer rows.Close()
	out := []Suggestion{}
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.TPIN); err != nil {
			return nil, db.Classify("scan customer suggestion", err)
		}
		out = append(out, s)
	}
	return out, db.Classify("search customers", rows.Err())
}

// Update stores c.
func (r *Repository) Update(ctx context.Context, c Customer) (Customer, error) {
	updated, err := scanCustomer(r.pool.QueryRow(ctx, `UPDATE customers
SET code = $2, name = $3, tpin = $4, email = $5, phone = $6, address = $7, updated_at = NOW()
WHERE id = $1
RETURNING `+customerColumns, c.ID, c.Code, c.Name, c.TPIN, c.Email, c.Phone, c.Address))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFoundf("customer %d not found", c.ID)
	}
	if err != nil {
		return Customer{}, db.Classify("update customer", err)
	}
	return updated, nil
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `UPDATE customers SET is_active = $2, updated_at = NOW()
WHERE id = $1 RETURNING `+customerColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFoundf("customer %d not found", id)
	}
	if err != nil {
		return Customer{}, db.Classify("set customer active", err)
	}
	return c, nil
}

// Delete removes a customer. Documents keep their numbers; their customer
// reference is cleared by the foreign key.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return db.Classify("delete customer", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("customer %d not found", id)
	}
	return nil
}
