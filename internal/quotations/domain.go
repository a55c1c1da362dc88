// Package quotations drafts, prices and approves quotations.
package quotations

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/totals"
)

// ApprovalModule keys quotation entries in the approvals table.
const ApprovalModule = "quotations"

// Status is the lifecycle state of a quotation.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Item is a priced line on a quotation.
type Item struct {
	ID          int64           `json:"id,omitempty"`
	Position    int             `json:"position"`
	ProductID   *int64          `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate_per_unit"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// LineItem returns the calculator view of the item.
func (i Item) LineItem() totals.LineItem {
	return totals.LineItem{Quantity: i.Quantity, Rate: i.Rate}
}

// Quotation is a quotation header with its items.
type Quotation struct {
	ID              int64            `json:"id"`
	Ref             uuid.UUID        `json:"ref"`
	Number          string           `json:"number"`
	ShopID          int64            `json:"shop_id"`
	CustomerID      *int64           `json:"customer_id,omitempty"`
	CustomerName    string           `json:"customer_name,omitempty"`
	Status          Status           `json:"status"`
	Tax             totals.TaxConfig `json:"tax"`
	Totals          totals.Result    `json:"totals"`
	Notes           string           `json:"notes"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
	CreatedBy       int64            `json:"created_by"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	ApprovedBy      *int64           `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	RejectedBy      *int64           `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time       `json:"rejected_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	InvoiceID       *int64           `json:"invoice_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Items           []Item           `json:"items,omitempty"`
}

// ItemInput is one line of a create or update request.
type ItemInput struct {
	ProductID   *int64          `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
	Rate        decimal.Decimal `json:"rate_per_unit" validate:"gte=0"`
}

// CreateInput drafts a new quotation. Tax fields left out are taken from the
// stored defaults.
type CreateInput struct {
	ShopID     int64       `json:"shop_id" validate:"required,gt=0"`
	CustomerID *int64      `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Items      []ItemInput `json:"items" validate:"required,min=1,max=200,dive"`
	Notes      *string     `json:"notes,omitempty" validate:"omitempty,max=4000"`
	ValidUntil string      `json:"valid_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	totals.TaxRequest
}

// UpdateInput replaces the items of a draft and optionally its customer,
// notes, validity and tax. Tax fields left out keep their current value.
type UpdateInput struct {
	CustomerID *int64      `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Items      []ItemInput `json:"items" validate:"required,min=1,max=200,dive"`
	Notes      *string     `json:"notes,omitempty" validate:"omitempty,max=4000"`
	ValidUntil *string     `json:"valid_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	totals.TaxRequest
}

// ListFilter narrows a quotation listing.
type ListFilter struct {
	Status     Status
	CustomerID *int64
	ShopID     *int64
	From       *time.Time
	To         *time.Time
	Search     string
	Page       shared.PageRequest
}

// StatusChange is persisted by a transition.
type StatusChange struct {
	ID     int64
	Status Status
	Actor  shared.Actor
	At     time.Time
	Reason string
}

// CheckItems rejects quantities, rates and percentages finer than the stored
// columns.
func CheckItems(inputs []ItemInput, tax totals.TaxConfig) error {
	lines := make([]totals.LineItem, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, totals.LineItem{Quantity: in.Quantity, Rate: in.Rate})
	}
	return totals.ValidateItems(lines, tax)
}

// BuildItems prices inputs with the calculator and returns the items and
// document totals.
func BuildItems(inputs []ItemInput, tax totals.TaxConfig) ([]Item, totals.Result) {
	items := make([]Item, 0, len(inputs))
	lines := make([]totals.LineItem, 0, len(inputs))
	for i, in := range inputs {
		line := totals.LineItem{Quantity: in.Quantity, Rate: in.Rate}.Sanitize()
		lines = append(lines, line)
		items = append(items, Item{
			Position:    i + 1,
			ProductID:   in.ProductID,
			Description: in.Description,
			Quantity:    line.Quantity,
			Rate:        line.Rate,
			LineTotal:   totals.LineTotal(line),
		})
	}
	return items, totals.Compute(lines, tax)
}
