// Package auth handles login sessions for API users.
package auth

import (
	"time"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Profile describes the signed-in user to the client.
type Profile struct {
	User        User     `json:"user"`
	Permissions []string `json:"permissions"`
	CSRFToken   string   `json:"csrf_token"`
}
