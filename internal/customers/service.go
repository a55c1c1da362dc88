package customers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/settings"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// maxCodeAttempts bounds how many generated codes are skipped because a
// custom code already took them.
const maxCodeAttempts = 20

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CodeExists(ctx context.Context, code string, exceptID int64) (bool, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
	Search(ctx context.Context, term string, limit int) ([]Suggestion, error)
	Update(ctx context.Context, c Customer) (Customer, error)
	SetActive(ctx context.Context, id int64, active bool) (Customer, error)
	Delete(ctx context.Context, id int64) error
}

// SettingsReader provides the configured customer code prefix.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Service handles customer business rules.
type Service struct {
	repo      RepositoryPort
	settings  SettingsReader
	generator *numbering.Generator
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, settings SettingsReader, generator *numbering.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, settings: settings, generator: generator, logger: logger}
}

// Create registers a customer. A supplied code must be unused; otherwise the
// next code from the customer sequence is assigned.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Customer, error) {
	if !actor.Valid() {
		return Customer{}, shared.ErrUnauthorized
	}
	customer := Customer{
		Code:      numbering.NormalizeCode(input.Code),
		Name:      strings.TrimSpace(input.Name),
		TPIN:      strings.TrimSpace(input.TPIN),
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Address:   strings.TrimSpace(input.Address),
		IsActive:  true,
		CreatedBy: actor.UserID,
	}
	if customer.Name == "" {
		return Customer{}, shared.Validationf("name is required")
	}
	if customer.Code != "" {
		if err := numbering.ValidateCustomerCode(customer.Code); err != nil {
			return Customer{}, err
		}
	}

	var prefix string
	if customer.Code == "" {
		cfg, err := s.settings.Get(ctx)
		if err != nil {
			return Customer{}, err
		}
		prefix = cfg.CustomerCodePrefix
	}

	var created Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if customer.Code != "" {
			exists, err := tx.CodeExists(ctx, customer.Code, 0)
			if err != nil {
				return err
			}
			if exists {
				return shared.Validationf("customer code %s already exists", customer.Code)
			}
		} else {
			code, err := s.nextCode(ctx, tx, prefix)
			if err != nil {
				return err
			}
			customer.Code = code
		}
		var err error
		created, err = tx.Insert(ctx, customer)
		return err
	})
	if err != nil {
		return Customer{}, err
	}
	return created, nil
}

func (s *Service) nextCode(ctx context.Context, tx TxRepository, prefix string) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generator.Next(ctx, tx, numbering.Customer, prefix, "", "")
		if err != nil {
			return "", err
		}
		exists, err := tx.CodeExists(ctx, code, 0)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.logger.WarnContext(ctx, "generated customer code already in use, skipping", slog.String("code", code))
	}
	return "", shared.Conflictf("could not allocate a free customer code")
}

// Get returns a customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of customers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Search returns autocomplete suggestions. An empty term yields nothing.
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

// Update changes a customer. A new code must be unused.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Customer, error) {
	if !actor.Valid() {
		return Customer{}, shared.ErrUnauthorized
	}
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if input.Code != nil {
		code := numbering.NormalizeCode(*input.Code)
		if err := numbering.ValidateCustomerCode(code); err != nil {
			return Customer{}, err
		}
		if code != customer.Code {
			exists, err := s.repo.CodeExists(ctx, code, id)
			if err != nil {
				return Customer{}, err
			}
			if exists {
				return Customer{}, shared.Validationf("customer code %s already exists", code)
			}
		}
		customer.Code = code
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return Customer{}, shared.Validationf("name is required")
		}
		customer.Name = name
	}
	if input.TPIN != nil {
		customer.TPIN = strings.TrimSpace(*input.TPIN)
	}
	if input.Email != nil {
		customer.Email = strings.TrimSpace(*input.Email)
	}
	if input.Phone != nil {
		customer.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Address != nil {
		customer.Address = strings.TrimSpace(*input.Address)
	}
	return s.repo.Update(ctx, customer)
}

// SetActive toggles whether the customer is offered for new documents.
func (s *Service) SetActive(ctx context.Context, actor shared.Actor, id int64, active bool) (Customer, error) {
	if !actor.Valid() {
		return Customer{}, shared.ErrUnauthorized
	}
	return s.repo.SetActive(ctx, id, active)
}

// Delete removes a customer. Admin only.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if !actor.IsAdmin() {
		return shared.Forbiddenf("only administrators can delete customers")
	}
	return s.repo.Delete(ctx, id)
}
