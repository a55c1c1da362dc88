package statements

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/quotedesk/internal/platform/storage"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const maxPeriod = 3 * 366 * 24 * time.Hour

// RepositoryPort loads statement activity.
type RepositoryPort interface {
	Load(ctx context.Context, customerID int64, period Period) (Snapshot, error)
}

// Renderer turns a statement into a document.
type Renderer interface {
	Render(st Statement) ([]byte, error)
}

// Queue schedules statement deliveries in the background worker.
type Queue interface {
	EnqueueStatementDelivery(ctx context.Context, req DeliveryRequest) (string, error)
}

// Service builds, renders and delivers customer statements.
type Service struct {
	repo     RepositoryPort
	renderer Renderer
	store    storage.ObjectStore
	queue    Queue
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service instance. store may be nil on the API side when
// deliveries are queued; queue may be nil to deliver inline.
func NewService(repo RepositoryPort, renderer Renderer, store storage.ObjectStore, queue Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, renderer: renderer, store: store, queue: queue, logger: logger, now: time.Now}
}

// ResolvePeriod fills in missing bounds. The default range runs from the
// first of the month to today.
func (s *Service) ResolvePeriod(from, to *time.Time) (Period, error) {
	end := day(s.now())
	if to != nil {
		end = day(*to)
	}
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	if from != nil {
		start = day(*from)
	}
	if end.Before(start) {
		return Period{}, shared.Validationf("from must not be after to")
	}
	if end.Sub(start) > maxPeriod {
		return Period{}, shared.Validationf("statement period may not exceed three years")
	}
	return Period{From: start, To: end}, nil
}

// Build assembles the statement of customerID for the given bounds.
func (s *Service) Build(ctx context.Context, customerID int64, from, to *time.Time) (Statement, error) {
	if customerID <= 0 {
		return Statement{}, shared.Validationf("customer id must be positive")
	}
	period, err := s.ResolvePeriod(from, to)
	if err != nil {
		return Statement{}, err
	}
	snap, err := s.repo.Load(ctx, customerID, period)
	if err != nil {
		return Statement{}, err
	}
	st := Assemble(snap, period, s.now().UTC())
	if st.Entries == nil {
		st.Entries = []Entry{}
	}
	return st, nil
}

// RenderPDF builds the statement and renders it.
func (s *Service) RenderPDF(ctx context.Context, customerID int64, from, to *time.Time) (Statement, []byte, error) {
	st, err := s.Build(ctx, customerID, from, to)
	if err != nil {
		return Statement{}, nil, err
	}
	data, err := s.renderer.Render(st)
	if err != nil {
		return Statement{}, nil, err
	}
	return st, data, nil
}

// RequestDelivery validates the request and queues it. Without a queue the
// statement is rendered and stored before returning.
func (s *Service) RequestDelivery(ctx context.Context, actor shared.Actor, customerID int64, from, to *time.Time) (DeliveryReceipt, error) {
	if !actor.Valid() {
		return DeliveryReceipt{}, shared.ErrUnauthorized
	}
	st, err := s.Build(ctx, customerID, from, to)
	if err != nil {
		return DeliveryReceipt{}, err
	}
	req := DeliveryRequest{
		CustomerID:  customerID,
		From:        st.From.Format(dateLayout),
		To:          st.To.Format(dateLayout),
		RequestedBy: actor.UserID,
	}
	if s.queue == nil {
		return s.deliver(ctx, req, st)
	}
	taskID, err := s.queue.EnqueueStatementDelivery(ctx, req)
	if err != nil {
		return DeliveryReceipt{}, err
	}
	s.logger.Info("statement delivery queued",
		slog.Int64("customer_id", customerID),
		slog.String("task_id", taskID),
		slog.Int64("actor_id", actor.UserID),
	)
	return DeliveryReceipt{CustomerID: customerID, From: req.From, To: req.To, Queued: true, TaskID: taskID}, nil
}

// Deliver renders the requested statement and writes it to object storage.
func (s *Service) Deliver(ctx context.Context, req DeliveryRequest) (DeliveryReceipt, error) {
	from, err := parseDay(req.From, "from")
	if err != nil {
		return DeliveryReceipt{}, err
	}
	to, err := parseDay(req.To, "to")
	if err != nil {
		return DeliveryReceipt{}, err
	}
	st, err := s.Build(ctx, req.CustomerID, from, to)
	if err != nil {
		return DeliveryReceipt{}, err
	}
	return s.deliver(ctx, req, st)
}

func (s *Service) deliver(ctx context.Context, req DeliveryRequest, st Statement) (DeliveryReceipt, error) {
	if s.store == nil {
		return DeliveryReceipt{}, shared.Validationf("statement storage is not configured")
	}
	data, err := s.renderer.Render(st)
	if err != nil {
		return DeliveryReceipt{}, err
	}
	location, err := s.store.Put(ctx, FileKey(st), data, "application/pdf")
	if err != nil {
		return DeliveryReceipt{}, err
	}
	s.logger.Info("statement delivered",
		slog.Int64("customer_id", st.Customer.ID),
		slog.String("location", location),
		slog.Int("bytes", len(data)),
	)
	return DeliveryReceipt{
		CustomerID: st.Customer.ID,
		From:       st.From.Format(dateLayout),
		To:         st.To.Format(dateLayout),
		Location:   location,
	}, nil
}

func parseDay(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, shared.Validationf("invalid %s %q, expected YYYY-MM-DD", field, raw)
	}
	return &t, nil
}
