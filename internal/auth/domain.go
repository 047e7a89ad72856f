package auth

import (
	"fmt"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

// ErrInvalidCredentials indicates a failed login. It maps to 401.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", httpx.ErrUnauthorized)

// Account is the login view of a user.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Active       bool
}
