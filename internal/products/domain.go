// Package products manages the catalogue offered on quotations.
package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Product is a catalogue entry with its default rate.
type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Rate        decimal.Decimal `json:"rate"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateInput holds the fields of a new product.
type CreateInput struct {
	SKU         string          `json:"sku" validate:"required,max=40"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Unit        string          `json:"unit" validate:"max=20"`
	Rate        decimal.Decimal `json:"rate" validate:"gte=0"`
}

// UpdateInput changes selected fields.
type UpdateInput struct {
	SKU         *string          `json:"sku,omitempty" validate:"omitempty,min=1,max=40"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Unit        *string          `json:"unit,omitempty" validate:"omitempty,max=20"`
	Rate        *decimal.Decimal `json:"rate,omitempty" validate:"omitempty,gte=0"`
}

// ListFilter narrows a product listing.
type ListFilter struct {
	Search string
	Active *bool
	Page   shared.PageRequest
}

// Suggestion is an autocomplete entry carrying the default rate.
type Suggestion struct {
	ID   int64           `json:"id"`
	SKU  string          `json:"sku"`
	Name string          `json:"name"`
	Unit string          `json:"unit"`
	Rate decimal.Decimal `json:"rate"`
}

const defaultUnit = "unit"
