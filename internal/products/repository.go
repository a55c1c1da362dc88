package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for products.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, description, unit, rate, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Unit, &p.Rate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a product. A duplicate SKU surfaces as a conflict.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	created, err := scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, description, unit, rate, is_active)
VALUES ($1, $2, $3, $4, $5, TRUE)
RETURNING `+productColumns, p.SKU, p.Name, p.Description, p.Unit, p.Rate))
	if err != nil {
		return Product{}, db.Classify("create product", err)
	}
	return created, nil
}

// Get loads a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundf("product %d not found", id)
	}
	if err != nil {
		return Product{}, db.Classify("get product", err)
	}
	return p, nil
}

// List returns a filtered page of products and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
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
		conditions = append(conditions, fmt.Sprintf("(sku ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify("count products", err)
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify("list products", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, db.Classify("scan product", err)
		}
		out = append(out, p)
	}
	return out, total, db.Classify("list products", rows.Err())
}

// Search returns active products matching term for autocomplete.
func (r *Repository) Search(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, unit, rate FROM products
WHERE is_active AND (sku ILIKE $1 OR name ILIKE $1)
ORDER BY (sku ILIKE $2 OR name ILIKE $2) DESC, name
LIMIT $3`, "%"+term+"%", term+"%", limit)
	if err != nil {
		return nil, db.Classify("search products", err)
	}
	defer rows.Close()
	out := []Suggestion{}
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.ID, &s.SKU, &s.Name, &s.Unit, &s.Rate); err != nil {
			return nil, db.Classify("scan product suggestion", err)
		}
		out = append(out, s)
	}
	return out, db.Classify("search products", rows.Err())
}

// Update stores p.
func (r *Repository) Update(ctx context.Context, p Product) (Product, error) {
	updated, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products
SET sku = $2, name = $3, description = $4, unit = $5, rate = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns, p.ID, p.SKU, p.Name, p.Description, p.Unit, p.Rate))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundf("product %d not found", p.ID)
	}
	if err != nil {
		return Product{}, db.Classify("update product", err)
	}
	return updated, nil
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products SET is_active = $2, updated_at = NOW()
WHERE id = $1 RETURNING `+productColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundf("product %d not found", id)
	}
	if err != nil {
		return Product{}, db.Classify("set product active", err)
	}
	return p, nil
}

// Delete removes a product. Document lines keep their copied description and rate.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return db.Classify("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product %d not found", id)
	}
	return nil
}
