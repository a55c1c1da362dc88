package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// PGStore keeps counters in document_sequences. It only accepts a pgx.Tx:
// the row lock taken by NextValue lasts until that transaction ends.
type PGStore struct {
	tx pgx.Tx
}

// NewPGStore binds a store to tx.
func NewPGStore(tx pgx.Tx) *PGStore {
	return &PGStore{tx: tx}
}

// NextValue locks the counter row, creating it on first use, and returns the
// incremented value.
func (s *PGStore) NextValue(ctx context.Context, key SequenceKey) (int64, error) {
	var last int64
	err := s.tx.QueryRow(ctx, `SELECT last_value FROM document_sequences
WHERE doc_type = $1 AND scope = $2
FOR UPDATE`, string(key.DocType), key.Scope).Scan(&last)
	switch {
	case err == nil:
		var next int64
		if err := s.tx.QueryRow(ctx, `UPDATE document_sequences
SET last_value = last_value + 1, updated_at = NOW()
WHERE doc_type = $1 AND scope = $2
RETURNING last_value`, string(key.DocType), key.Scope).Scan(&next); err != nil {
			return 0, db.Classify("increment sequence", err)
		}
		return next, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Two first callers can race here; the conflict clause serialises them
		// on the freshly inserted row.
		var next int64
		if err := s.tx.QueryRow(ctx, `INSERT INTO document_sequences (doc_type, scope, last_value, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (doc_type, scope)
DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = NOW()
RETURNING last_value`, string(key.DocType), key.Scope).Scan(&next); err != nil {
			return 0, db.Classify("create sequence", err)
		}
		return next, nil
	default:
		return 0, db.Classify("lock sequence", err)
	}
}

// PGDirectory reads shop and customer codes.
type PGDirectory struct {
	q shared.Querier
}

// NewPGDirectory constructs a directory over q.
func NewPGDirectory(q shared.Querier) *PGDirectory {
	return &PGDirectory{q: q}
}

// ShopCode implements Directory.
func (d *PGDirectory) ShopCode(ctx context.Context, shopID int64) (string, error) {
	var code string
	err := d.q.QueryRow(ctx, `SELECT COALESCE(code, '') FROM shops WHERE id = $1`, shopID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.NotFoundf("shop %d not found", shopID)
	}
	if err != nil {
		return "", db.Classify(fmt.Sprintf("load shop %d code", shopID), err)
	}
	return code, nil
}

// CustomerCode implements Directory.
func (d *PGDirectory) CustomerCode(ctx context.Context, customerID int64) (string, bool, error) {
	var code string
	err := d.q.QueryRow(ctx, `SELECT COALESCE(code, '') FROM customers WHERE id = $1`, customerID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, db.Classify(fmt.Sprintf("load customer %d code", customerID), err)
	}
	return code, true, nil
}
