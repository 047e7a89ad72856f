package users

import (
	"fmt"
	"time"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

// User is an agency staff account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"nome"`
	ProfileID    *int64    `json:"perfilId"`
	Profile      string    `json:"perfil,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash string    `json:"-"`
}

// NewUser carries the fields needed to register an account.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	ProfileID    *int64
}

var (
	// ErrNotFound is returned when the user does not exist.
	ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when the email is already taken.
	ErrDuplicate = fmt.Errorf("users: email already registered: %w", httpx.ErrDuplicate)
)
