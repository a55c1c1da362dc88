package products

import (
	"context"
	"strings"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// RepositoryPort defines data access methods for products.
type RepositoryPort interface {
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Search(ctx context.Context, term string, limit int) ([]Suggestion, error)
	Update(ctx context.Context, p Product) (Product, error)
	SetActive(ctx context.Context, id int64, active bool) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// Service handles product business rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create adds a product. SKUs are stored upper-cased.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Product, error) {
	if !actor.Valid() {
		return Product{}, shared.ErrUnauthorized
	}
	if input.Rate.IsNegative() {
		return Product{}, shared.Validationf("rate must be at least 0")
	}
	p := Product{
		SKU:         strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Unit:        strings.TrimSpace(input.Unit),
		Rate:        input.Rate,
	}
	if p.SKU == "" || p.Name == "" {
		return Product{}, shared.Validationf("sku and name are required")
	}
	if p.Unit == "" {
		p.Unit = defaultUnit
	}
	return s.repo.Create(ctx, p)
}

// Get returns a product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Search returns autocomplete suggestions.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.repo.Search(ctx, term, limit)
}

// Update changes a product.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Product, error) {
	if !actor.Valid() {
		return Product{}, shared.ErrUnauthorized
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if input.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*input.SKU))
		if sku == "" {
			return Product{}, shared.Validationf("sku is required")
		}
		p.SKU = sku
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return Product{}, shared.Validationf("name is required")
		}
		p.Name = name
	}
	if input.Description != nil {
		p.Description = strings.TrimSpace(*input.Description)
	}
	if input.Unit != nil {
		p.Unit = strings.TrimSpace(*input.Unit)
		if p.Unit == "" {
			p.Unit = defaultUnit
		}
	}
	if input.Rate != nil {
		if input.Rate.IsNegative() {
			return Product{}, shared.Validationf("rate must be at least 0")
		}
		p.Rate = *input.Rate
	}
	return s.repo.Update(ctx, p)
}

// SetActive toggles whether the product is offered on new documents.
func (s *Service) SetActive(ctx context.Context, actor shared.Actor, id int64, active bool) (Product, error) {
	if !actor.Valid() {
		return Product{}, shared.ErrUnauthorized
	}
	return s.repo.SetActive(ctx, id, active)
}

// Delete removes a product. Admin only.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if !actor.IsAdmin() {
		return shared.Forbiddenf("only administrators can delete products")
	}
	return s.repo.Delete(ctx, id)
}
