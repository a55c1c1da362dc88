package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Idempotency modules.
const (
	IdempotencyInvoiceCreate = "invoices.create"
	IdempotencyPaymentRecord = "payments.record"
)

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	db Querier
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// WithQuerier binds the store to an open transaction so the key is only kept
// when the guarded work commits.
func (s *IdempotencyStore) WithQuerier(q Querier) *IdempotencyStore {
	if s == nil {
		return nil
	}
	return &IdempotencyStore{db: q}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", ErrConflict)

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Complete stores the id of the resource produced for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, module string, resourceID int64) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	_, err := s.db.Exec(ctx, `UPDATE idempotency_keys SET resource_id=$3 WHERE key=$1 AND module=$2`, key, module, resourceID)
	return err
}

// Lookup returns the resource recorded for key, if the request already completed.
func (s *IdempotencyStore) Lookup(ctx context.Context, key, module string) (int64, bool, error) {
	if s == nil || key == "" {
		return 0, false, nil
	}
	var resourceID *int64
	err := s.db.QueryRow(ctx, `SELECT resource_id FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).Scan(&resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if resourceID == nil {
		return 0, false, nil
	}
	return *resourceID, true, nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
