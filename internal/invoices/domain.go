// Package invoices turns approved quotations into invoices and records the
// payments made against them.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/totals"
)

// Status is derived from the stored facts of an invoice; it is never stored.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSent          Status = "SENT"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusOverdue       Status = "OVERDUE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCheque       PaymentMethod = "cheque"
	MethodCard         PaymentMethod = "card"
)

// Item is a line copied from the source quotation.
type Item struct {
	ID          int64           `json:"id,omitempty"`
	Position    int             `json:"position"`
	ProductID   *int64          `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate_per_unit"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Invoice is an invoice header with its items. Paid, Balance and Status are
// computed on read.
type Invoice struct {
	ID           int64            `json:"id"`
	Number       string           `json:"number"`
	QuotationID  *int64           `json:"quotation_id,omitempty"`
	ShopID       int64            `json:"shop_id"`
	CustomerID   *int64           `json:"customer_id,omitempty"`
	CustomerName string           `json:"customer_name,omitempty"`
	Tax          totals.TaxConfig `json:"tax"`
	Totals       totals.Result    `json:"totals"`
	Notes        string           `json:"notes"`
	IssueDate    time.Time        `json:"issue_date"`
	DueDate      time.Time        `json:"due_date"`
	SentAt       *time.Time       `json:"sent_at,omitempty"`
	CreatedBy    int64            `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Paid         decimal.Decimal  `json:"amount_paid"`
	Balance      decimal.Decimal  `json:"balance"`
	Status       Status           `json:"status"`
	Items        []Item           `json:"items,omitempty"`
	Payments     []Payment        `json:"payments,omitempty"`
}

// Payment is money received against an invoice.
type Payment struct {
	ID            int64           `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	InvoiceID     int64           `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
	Method        PaymentMethod   `json:"method"`
	Reference     string          `json:"reference,omitempty"`
	Note          string          `json:"note,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ConvertInput customises an invoice created from a quotation.
type ConvertInput struct {
	IssueDate string  `json:"issue_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// PaymentInput records a payment.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	PaidAt    string          `json:"paid_at,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Method    PaymentMethod   `json:"method,omitempty" validate:"omitempty,oneof=cash bank_transfer mobile_money cheque card"`
	Reference string          `json:"reference,omitempty" validate:"max=120"`
	Note      string          `json:"note,omitempty" validate:"max=1000"`
}

// ListFilter narrows an invoice listing.
type ListFilter struct {
	CustomerID *int64
	Status     Status
	Search     string
	Page       shared.PageRequest
}

// DeriveStatus computes the status of an invoice on day today. The first
// matching rule wins: paid in full, overdue, partially paid, sent, draft.
func DeriveStatus(net, paid decimal.Decimal, sentAt *time.Time, dueDate, today time.Time) Status {
	switch {
	case paid.GreaterThanOrEqual(net) && (net.IsPositive() || paid.IsPositive()):
		return StatusPaid
	case sentAt != nil && net.Sub(paid).IsPositive() && day(dueDate).Before(day(today)):
		return StatusOverdue
	case paid.IsPositive():
		return StatusPartiallyPaid
	case sentAt != nil:
		return StatusSent
	default:
		return StatusDraft
	}
}

// Derive fills Balance and Status.
func (i *Invoice) Derive(today time.Time) {
	i.Balance = i.Totals.NetTotal.Sub(i.Paid)
	if i.Balance.IsNegative() {
		i.Balance = decimal.Zero
	}
	i.Status = DeriveStatus(i.Totals.NetTotal, i.Paid, i.SentAt, i.DueDate, today)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
