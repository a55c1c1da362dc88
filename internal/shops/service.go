package shops

import (
	"context"
	"strings"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// RepositoryPort defines data access methods for shops.
type RepositoryPort interface {
	Create(ctx context.Context, s Shop) (Shop, error)
	Get(ctx context.Context, id int64) (Shop, error)
	List(ctx context.Context) ([]Shop, error)
	Update(ctx context.Context, s Shop) (Shop, error)
}

// Service handles shop business rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a shop. Only admins manage shops.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Shop, error) {
	if !actor.IsAdmin() {
		return Shop{}, shared.Forbiddenf("only administrators can manage shops")
	}
	code := numbering.NormalizeCode(input.Code)
	if err := numbering.ValidateShopCode(code); err != nil {
		return Shop{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Shop{}, shared.Validationf("name is required")
	}
	return s.repo.Create(ctx, Shop{
		Code:    code,
		Name:    name,
		Address: strings.TrimSpace(input.Address),
		Phone:   strings.TrimSpace(input.Phone),
	})
}

// Get returns a shop.
func (s *Service) Get(ctx context.Context, id int64) (Shop, error) {
	return s.repo.Get(ctx, id)
}

// List returns every shop.
func (s *Service) List(ctx context.Context) ([]Shop, error) {
	return s.repo.List(ctx)
}

// Update changes a shop. Renaming a code only affects numbers issued later.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Shop, error) {
	if !actor.IsAdmin() {
		return Shop{}, shared.Forbiddenf("only administrators can manage shops")
	}
	shop, err := s.repo.Get(ctx, id)
	if err != nil {
		return Shop{}, err
	}
	if input.Code != nil {
		code := numbering.NormalizeCode(*input.Code)
		if err := numbering.ValidateShopCode(code); err != nil {
			return Shop{}, err
		}
		shop.Code = code
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return Shop{}, shared.Validationf("name is required")
		}
		shop.Name = name
	}
	if input.Address != nil {
		shop.Address = strings.TrimSpace(*input.Address)
	}
	if input.Phone != nil {
		shop.Phone = strings.TrimSpace(*input.Phone)
	}
	return s.repo.Update(ctx, shop)
}
