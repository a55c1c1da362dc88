// Package customers manages customer records and their codes.
package customers

import (
	"time"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Customer is a billed party.
type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	TPIN      string    `json:"tpin"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput holds the fields of a new customer. An empty code asks for a
// generated one.
type CreateInput struct {
	Code    string `json:"code" validate:"max=20"`
	Name    string `json:"name" validate:"required,max=200"`
	TPIN    string `json:"tpin" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email,max=200"`
	Phone   string `json:"phone" validate:"max=40"`
	Address string `json:"address" validate:"max=500"`
}

// UpdateInput changes selected fields.
type UpdateInput struct {
	Code    *string `json:"code,omitempty" validate:"omitempty,max=20"`
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	TPIN    *string `json:"tpin,omitempty" validate:"omitempty,max=40"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// ListFilter narrows a customer listing.
type ListFilter struct {
	Search string
	Active *bool
	Page   shared.PageRequest
}

// Suggestion is an autocomplete entry.
type Suggestion struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	TPIN string `json:"tpin,omitempty"`
}

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)
