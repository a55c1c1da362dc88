package shops

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for shops.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const shopColumns = `id, code, name, address, phone, created_at, updated_at`

func scanShop(row pgx.Row) (Shop, error) {
	var s Shop
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Address, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Create inserts a shop. A duplicate code surfaces as a conflict.
func (r *Repository) Create(ctx context.Context, s Shop) (Shop, error) {
	created, err := scanShop(r.pool.QueryRow(ctx, `INSERT INTO shops (code, name, address, phone)
VALUES ($1, $2, $3, $4)
RETURNING `+shopColumns, s.Code, s.Name, s.Address, s.Phone))
	if err != nil {
		return Shop{}, db.Classify("create shop", err)
	}
	return created, nil
}

// Get loads a shop by id.
func (r *Repository) Get(ctx context.Context, id int64) (Shop, error) {
	s, err := scanShop(r.pool.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Shop{}, shared.NotFoundf("shop %d not found", id)
	}
	if err != nil {
		return Shop{}, db.Classify("get shop", err)
	}
	return s, nil
}

// List returns all shops ordered by name.
func (r *Repository) List(ctx context.Context) ([]Shop, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY name, id`)
	if err != nil {
		return nil, db.Classify("list shops", err)
	}
	defer rows.Close()
	var out []Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, db.Classify("scan shop", err)
		}
		out = append(out, s)
	}
	return out, db.Classify("list shops", rows.Err())
}

// Update stores s.
func (r *Repository) Update(ctx context.Context, s Shop) (Shop, error) {
	updated, err := scanShop(r.pool.QueryRow(ctx, `UPDATE shops
SET code = $2, name = $3, address = $4, phone = $5, updated_at = NOW()
WHERE id = $1
RETURNING `+shopColumns, s.ID, s.Code, s.Name, s.Address, s.Phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Shop{}, shared.NotFoundf("shop %d not found", s.ID)
	}
	if err != nil {
		return Shop{}, db.Classify("update shop", err)
	}
	return updated, nil
}
