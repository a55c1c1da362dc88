package quotations

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/settings"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const dateLayout = "2006-01-02"

// RepositoryPort defines data access methods for quotations.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	History(ctx context.Context, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// SettingsReader provides tax defaults, the quotation prefix and note template.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// TransitionRecorder observes status changes. It may be nil.
type TransitionRecorder interface {
	QuotationTransitioned(action string)
}

// Service orchestrates the quotation lifecycle.
type Service struct {
	repo      RepositoryPort
	settings  SettingsReader
	generator *numbering.Generator
	recorder  TransitionRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, settings SettingsReader, generator *numbering.Generator, recorder TransitionRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		settings:  settings,
		generator: generator,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Create drafts a quotation. The number, header and items are written in one
// transaction.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Quotation, error) {
	if !actor.Valid() {
		return Quotation{}, shared.ErrUnauthorized
	}
	if len(input.Items) == 0 {
		return Quotation{}, shared.Validationf("a quotation needs at least one item")
	}
	validUntil, err := parseDay(input.ValidUntil)
	if err != nil {
		return Quotation{}, err
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return Quotation{}, err
	}

	tax := input.Resolve(cfg.Tax()).Sanitize()
	if err := CheckItems(input.Items, tax); err != nil {
		return Quotation{}, err
	}
	items, result := BuildItems(input.Items, tax)
	notes := cfg.QuotationNote
	if input.Notes != nil {
		notes = strings.TrimSpace(*input.Notes)
	}
	draft := Quotation{
		Ref:        uuid.New(),
		ShopID:     input.ShopID,
		CustomerID: input.CustomerID,
		Status:     StatusDraft,
		Tax:        tax,
		Totals:     result,
		Notes:      notes,
		ValidUntil: validUntil,
		CreatedBy:  actor.UserID,
		Items:      items,
	}

	var created Quotation
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureCustomer(ctx, tx, draft.CustomerID); err != nil {
			return err
		}
		number, err := s.generator.Allocate(ctx, tx, tx, numbering.Request{
			DocType:    numbering.Quotation,
			Prefix:     cfg.QuotationPrefix,
			ShopID:     draft.ShopID,
			CustomerID: draft.CustomerID,
		})
		if err != nil {
			return err
		}
		draft.Number = number
		created, err = tx.Insert(ctx, draft)
		if err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "quotation.create",
			Entity:   "quotation",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"number": created.Number, "net_total": created.Totals.NetTotal.StringFixed(2)},
		})
	})
	if err != nil {
		return Quotation{}, err
	}
	s.logger.InfoContext(ctx, "quotation created",
		slog.Int64("quotation_id", created.ID),
		slog.String("number", created.Number),
		slog.Int64("actor_id", actor.UserID))
	return created, nil
}

// Get returns a quotation with its items.
func (s *Service) Get(ctx context.Context, id int64) (Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of quotations.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown status %q", filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, shared.Pagination{}, shared.Validationf("to must not be before from")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// History returns the approval trail of a quotation.
func (s *Service) History(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.History(ctx, q.Ref)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// Update replaces the items of a draft and recomputes its totals.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Quotation, error) {
	if len(input.Items) == 0 {
		return Quotation{}, shared.Validationf("a quotation needs at least one item")
	}
	var validUntil *time.Time
	if input.ValidUntil != nil {
		var err error
		if validUntil, err = parseDay(*input.ValidUntil); err != nil {
			return Quotation{}, err
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(actor, q, ActionEdit); err != nil {
			return err
		}
		if input.CustomerID != nil {
			if err := ensureCustomer(ctx, tx, input.CustomerID); err != nil {
				return err
			}
			q.CustomerID = input.CustomerID
		}
		if input.Notes != nil {
			q.Notes = strings.TrimSpace(*input.Notes)
		}
		if input.ValidUntil != nil {
			q.ValidUntil = validUntil
		}
		q.Tax = input.Resolve(q.Tax).Sanitize()
		if err := CheckItems(input.Items, q.Tax); err != nil {
			return err
		}
		q.Items, q.Totals = BuildItems(input.Items, q.Tax)
		if err := tx.UpdateDraft(ctx, q); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, q.ID, q.Items); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "quotation.update",
			Entity:   "quotation",
			EntityID: strconv.FormatInt(q.ID, 10),
			Meta:     map[string]any{"net_total": q.Totals.NetTotal.StringFixed(2), "items": len(q.Items)},
		})
	})
	if err != nil {
		return Quotation{}, err
	}
	return s.repo.Get(ctx, id)
}

// Submit moves a draft to SUBMITTED.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id int64) (Quotation, error) {
	return s.transition(ctx, actor, id, ActionSubmit, "")
}

// Approve moves a draft or submitted quotation to APPROVED. Admin only.
func (s *Service) Approve(ctx context.Context, actor shared.Actor, id int64, note string) (Quotation, error) {
	return s.transition(ctx, actor, id, ActionApprove, strings.TrimSpace(note))
}

// Reject moves a draft or submitted quotation to REJECTED. Admin only; a
// reason is required.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id int64, reason string) (Quotation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Quotation{}, shared.Validationf("a rejection reason is required")
	}
	return s.transition(ctx, actor, id, ActionReject, reason)
}

func (s *Service) transition(ctx context.Context, actor shared.Actor, id int64, action Action, note string) (Quotation, error) {
	next, ok := Next(action)
	if !ok {
		return Quotation{}, shared.Validationf("%s is not a status transition", action)
	}
	var from Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(actor, q, action); err != nil {
			return err
		}
		from = q.Status
		at := s.now().UTC()
		if err := tx.UpdateStatus(ctx, StatusChange{ID: q.ID, Status: next, Actor: actor, At: at, Reason: note}); err != nil {
			return err
		}
		if err := tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  ApprovalModule,
			RefID:   q.Ref,
			ActorID: actor.UserID,
			Action:  approvalAction(action),
			Note:    note,
			At:      at,
		}); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "quotation." + string(action),
			Entity:   "quotation",
			EntityID: strconv.FormatInt(q.ID, 10),
			Meta:     map[string]any{"from": string(q.Status), "to": string(next)},
			At:       at,
		})
	})
	if err != nil {
		return Quotation{}, err
	}
	if s.recorder != nil {
		s.recorder.QuotationTransitioned(string(action))
	}
	s.logger.InfoContext(ctx, "quotation status changed",
		slog.Int64("quotation_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(next)),
		slog.Int64("actor_id", actor.UserID))
	return s.repo.Get(ctx, id)
}

// Delete removes a draft.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(actor, q, ActionDelete); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "quotation.delete",
			Entity:   "quotation",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"number": q.Number},
		})
	})
}

func ensureCustomer(ctx context.Context, dir numbering.Directory, customerID *int64) error {
	if customerID == nil {
		return nil
	}
	_, found, err := dir.CustomerCode(ctx, *customerID)
	if err != nil {
		return err
	}
	if !found {
		return shared.NotFoundf("customer %d not found", *customerID)
	}
	return nil
}

func parseDay(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, shared.Validationf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return &t, nil
}
