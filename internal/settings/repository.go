package settings

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Repository reads and writes the settings table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load returns every stored key.
func (r *Repository) Load(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, db.Classify("load settings", err)
	}
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, db.Classify("scan setting", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("load settings", err)
	}
	return values, nil
}

// Save upserts values and records the change in the audit log within one
// transaction.
func (r *Repository) Save(ctx context.Context, actor shared.Actor, values map[string]string) error {
	return db.WithTxOptions(ctx, r.pool, db.WriteTxOptions, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for key, value := range values {
			batch.Queue(`INSERT INTO settings (key, value, updated_by, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()`,
				key, value, actor.UserID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return db.Classify("save settings", err)
		}
		meta := make(map[string]any, len(values))
		for k, v := range values {
			meta[k] = v
		}
		err := shared.NewAuditLogger(tx).Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "settings.update",
			Entity:   "settings",
			EntityID: "global",
			Meta:     meta,
		})
		return db.Classify("audit settings", err)
	})
}
