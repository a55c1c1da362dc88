// Package shops manages the shop (branch) records whose codes appear in
// document numbers.
package shops

import "time"

// Shop is a selling location.
type Shop struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput holds the fields of a new shop.
type CreateInput struct {
	Code    string `json:"code" validate:"required,max=10"`
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=40"`
}

// UpdateInput changes selected fields.
type UpdateInput struct {
	Code    *string `json:"code,omitempty" validate:"omitempty,max=10"`
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
}
