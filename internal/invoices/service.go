package invoices

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/quotations"
	"github.com/odyssey-erp/quotedesk/internal/settings"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const dateLayout = "2006-01-02"

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter, today time.Time) ([]Invoice, int, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	OverdueSummary(ctx context.Context, today time.Time) (int, decimal.Decimal, error)
}

// SettingsReader provides prefixes, payment terms and the note template.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// PaymentRecorder observes recorded payments. It may be nil.
type PaymentRecorder interface {
	PaymentRecorded(method string, amount float64)
}

// Service handles invoice and payment business rules.
type Service struct {
	repo      RepositoryPort
	settings  SettingsReader
	generator *numbering.Generator
	recorder  PaymentRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, settings SettingsReader, generator *numbering.Generator, recorder PaymentRecorder, logger *slog.Logger) *Service {
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

func (s *Service) today() time.Time {
	return day(s.now())
}

// CreateFromQuotation invoices an approved quotation. Items, tax and totals
// are copied as they are; a quotation is invoiced at most once. When key is
// set, repeating the request returns the invoice created the first time.
func (s *Service) CreateFromQuotation(ctx context.Context, actor shared.Actor, quotationID int64, input ConvertInput, key string) (Invoice, error) {
	if !actor.Valid() {
		return Invoice{}, shared.ErrUnauthorized
	}
	issue := s.today()
	if strings.TrimSpace(input.IssueDate) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(input.IssueDate))
		if err != nil {
			return Invoice{}, shared.Validationf("invalid issue_date %q, expected YYYY-MM-DD", input.IssueDate)
		}
		issue = parsed
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return Invoice{}, err
	}
	key = strings.TrimSpace(key)

	var (
		invoiceID int64
		replayed  bool
		number    string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if key != "" {
			id, replay, err := tx.ReserveKey(ctx, key, shared.IdempotencyInvoiceCreate)
			if err != nil {
				return err
			}
			if replay {
				invoiceID, replayed = id, true
				return nil
			}
		}
		q, err := tx.LockQuotation(ctx, quotationID)
		if err != nil {
			return err
		}
		if err := quotations.Authorize(actor, q, quotations.ActionConvert); err != nil {
			return err
		}
		number, err = s.generator.Allocate(ctx, tx, tx, numbering.Request{
			DocType:    numbering.Invoice,
			Prefix:     cfg.InvoicePrefix,
			ShopID:     q.ShopID,
			CustomerID: q.CustomerID,
		})
		if err != nil {
			return err
		}
		inv := fromQuotation(q)
		inv.Number = number
		inv.IssueDate = issue
		inv.DueDate = issue.AddDate(0, 0, cfg.PaymentTermsDays)
		inv.CreatedBy = actor.UserID
		switch {
		case input.Notes != nil:
			inv.Notes = strings.TrimSpace(*input.Notes)
		case cfg.InvoiceNote != "":
			inv.Notes = cfg.InvoiceNote
		}
		created, err := tx.Insert(ctx, inv)
		if err != nil {
			return err
		}
		invoiceID = created.ID
		if err := tx.LinkQuotation(ctx, q.ID, created.ID); err != nil {
			return err
		}
		if key != "" {
			if err := tx.CompleteKey(ctx, key, shared.IdempotencyInvoiceCreate, created.ID); err != nil {
				return err
			}
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "invoice.create",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta: map[string]any{
				"number":       created.Number,
				"quotation_id": q.ID,
				"net_total":    created.Totals.NetTotal.StringFixed(2),
			},
		})
	})
	if err != nil {
		return Invoice{}, err
	}
	if replayed {
		s.logger.InfoContext(ctx, "invoice request replayed", slog.Int64("invoice_id", invoiceID), slog.String("idempotency_key", key))
	} else {
		s.logger.InfoContext(ctx, "invoice created",
			slog.Int64("invoice_id", invoiceID),
			slog.Int64("quotation_id", quotationID),
			slog.String("number", number),
			slog.Int64("actor_id", actor.UserID))
	}
	return s.Get(ctx, invoiceID)
}

func fromQuotation(q quotations.Quotation) Invoice {
	quotationID := q.ID
	inv := Invoice{
		QuotationID: &quotationID,
		ShopID:      q.ShopID,
		CustomerID:  q.CustomerID,
		Tax:         q.Tax,
		Totals:      q.Totals,
		Notes:       q.Notes,
		Items:       make([]Item, 0, len(q.Items)),
	}
	for _, it := range q.Items {
		inv.Items = append(inv.Items, Item{
			Position:    it.Position,
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			LineTotal:   it.LineTotal,
		})
	}
	return inv
}

// Get returns an invoice with items, payments and derived status.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Payments = payments
	inv.Derive(s.today())
	return inv, nil
}

// List returns a page of invoices with derived status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown status %q", filter.Status)
	}
	today := s.today()
	items, total, err := s.repo.List(ctx, filter, today)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	for i := range items {
		items[i].Derive(today)
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// MarkSent records that the invoice was sent to the customer.
func (s *Service) MarkSent(ctx context.Context, actor shared.Actor, id int64) (Invoice, error) {
	if !actor.Valid() {
		return Invoice{}, shared.ErrUnauthorized
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if inv.SentAt != nil {
			return shared.InvalidStatusf("invoice %s was already sent on %s", inv.Number, inv.SentAt.Format(dateLayout))
		}
		at := s.now().UTC()
		if err := tx.MarkSent(ctx, id, at); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "invoice.send",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(id, 10),
			At:       at,
		})
	})
	if err != nil {
		return Invoice{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes an unsent invoice without payments. Admin only. The source
// quotation becomes available for invoicing again.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if !actor.IsAdmin() {
		return shared.Forbiddenf("only administrators can delete invoices")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if inv.SentAt != nil || inv.Paid.IsPositive() {
			return shared.InvalidStatusf("invoice %s has been sent or paid and cannot be deleted", inv.Number)
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "invoice.delete",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"number": inv.Number},
		})
	})
}

// RecordPayment adds a payment and issues a receipt number. The invoice row is
// locked so concurrent payments cannot overpay it.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, invoiceID int64, input PaymentInput, key string) (Payment, error) {
	if !actor.Valid() {
		return Payment{}, shared.ErrUnauthorized
	}
	if !input.Amount.IsPositive() {
		return Payment{}, shared.Validationf("amount must be greater than 0")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return Payment{}, shared.Validationf("amount must have at most two decimal places")
	}
	paidAt := s.today()
	if raw := strings.TrimSpace(input.PaidAt); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Payment{}, shared.Validationf("invalid paid_at %q, expected YYYY-MM-DD", input.PaidAt)
		}
		paidAt = parsed
	}
	method := input.Method
	if method == "" {
		method = MethodCash
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return Payment{}, err
	}
	key = strings.TrimSpace(key)

	var (
		created  Payment
		replayID int64
		replayed bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if key != "" {
			id, replay, err := tx.ReserveKey(ctx, key, shared.IdempotencyPaymentRecord)
			if err != nil {
				return err
			}
			if replay {
				replayID, replayed = id, true
				return nil
			}
		}
		inv, err := tx.Lock(ctx, invoiceID)
		if err != nil {
			return err
		}
		balance := inv.Totals.NetTotal.Sub(inv.Paid)
		if !balance.IsPositive() {
			return shared.InvalidStatusf("invoice %s is already paid in full", inv.Number)
		}
		if input.Amount.GreaterThan(balance) {
			return shared.Validationf("payment of %s exceeds the outstanding balance of %s", input.Amount.StringFixed(2), balance.StringFixed(2))
		}
		receipt, err := s.generator.Allocate(ctx, tx, tx, numbering.Request{
			DocType: numbering.Receipt,
			Prefix:  cfg.ReceiptPrefix,
			ShopID:  inv.ShopID,
		})
		if err != nil {
			return err
		}
		created, err = tx.InsertPayment(ctx, Payment{
			ReceiptNumber: receipt,
			InvoiceID:     inv.ID,
			Amount:        input.Amount,
			PaidAt:        paidAt,
			Method:        method,
			Reference:     strings.TrimSpace(input.Reference),
			Note:          strings.TrimSpace(input.Note),
			CreatedBy:     actor.UserID,
		})
		if err != nil {
			return err
		}
		if key != "" {
			if err := tx.CompleteKey(ctx, key, shared.IdempotencyPaymentRecord, created.ID); err != nil {
				return err
			}
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "payment.record",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(inv.ID, 10),
			Meta: map[string]any{
				"receipt_number": receipt,
				"amount":         input.Amount.StringFixed(2),
				"balance_after":  balance.Sub(input.Amount).StringFixed(2),
			},
		})
	})
	if err != nil {
		return Payment{}, err
	}
	if replayed {
		s.logger.InfoContext(ctx, "payment request replayed", slog.Int64("payment_id", replayID), slog.String("idempotency_key", key))
		return s.repo.GetPayment(ctx, replayID)
	}
	if s.recorder != nil {
		amount, _ := created.Amount.Float64()
		s.recorder.PaymentRecorded(string(created.Method), amount)
	}
	s.logger.InfoContext(ctx, "payment recorded",
		slog.Int64("invoice_id", invoiceID),
		slog.String("receipt_number", created.ReceiptNumber),
		slog.String("amount", created.Amount.StringFixed(2)),
		slog.Int64("actor_id", actor.UserID))
	return created, nil
}

// ListPayments returns the payments of an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []Payment{}
	}
	return payments, nil
}

// OverdueSummary reports how many invoices are overdue today and the total
// outstanding on them.
func (s *Service) OverdueSummary(ctx context.Context) (int, decimal.Decimal, error) {
	return s.repo.OverdueSummary(ctx, s.today())
}
