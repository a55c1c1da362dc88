package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// UserLookup loads the authorisation facts of a user.
type UserLookup interface {
	FindUser(ctx context.Context, id int64) (UserRecord, error)
}

// Service resolves actors and their permissions.
type Service struct {
	users UserLookup
}

// NewService constructs a Service.
func NewService(users UserLookup) *Service {
	return &Service{users: users}
}

// Actor resolves the actor for an authenticated user id. Unknown or
// deactivated users are unauthorised.
func (s *Service) Actor(ctx context.Context, userID int64) (shared.Actor, error) {
	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Actor{}, shared.ErrUnauthorized
		}
		return shared.Actor{}, err
	}
	if !user.IsActive || !user.Role.Valid() {
		return shared.Actor{}, shared.ErrUnauthorized
	}
	return shared.Actor{UserID: user.ID, Role: user.Role}, nil
}

// EffectivePermissions returns the permission names held by a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	actor, err := s.Actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return PermissionsFor(actor.Role), nil
}

// PGUsers reads users from Postgres.
type PGUsers struct {
	pool *pgxpool.Pool
}

// NewPGUsers constructs PGUsers.
func NewPGUsers(pool *pgxpool.Pool) *PGUsers {
	return &PGUsers{pool: pool}
}

// FindUser implements UserLookup.
func (p *PGUsers) FindUser(ctx context.Context, id int64) (UserRecord, error) {
	var (
		user UserRecord
		role string
	)
	err := p.pool.QueryRow(ctx, `SELECT id, role, is_active FROM users WHERE id = $1`, id).Scan(&user.ID, &role, &user.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, shared.NotFoundf("user %d not found", id)
	}
	if err != nil {
		return UserRecord{}, db.Classify("load user", err)
	}
	user.Role = shared.Role(role)
	return user, nil
}
