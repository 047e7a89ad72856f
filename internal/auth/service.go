package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

// AccountFinder loads accounts by email. It returns an error wrapping
// httpx.ErrNotFound when the email is unknown.
type AccountFinder interface {
	FindAccount(ctx context.Context, email string) (Account, error)
}

// AccountFinderFunc adapts a function to AccountFinder.
type AccountFinderFunc func(ctx context.Context, email string) (Account, error)

// FindAccount implements AccountFinder.
func (f AccountFinderFunc) FindAccount(ctx context.Context, email string) (Account, error) {
	return f(ctx, email)
}

// Service wraps authentication business rules.
type Service struct {
	accounts AccountFinder
}

// NewService constructs a new Service.
func NewService(accounts AccountFinder) *Service {
	return &Service{accounts: accounts}
}

// dummyHash keeps unknown-email logins as slow as wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("backlog-dim-placeholder"), bcrypt.DefaultCost)

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	acct, err := s.accounts.FindAccount(ctx, strings.TrimSpace(email))
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		if errors.Is(err, httpx.ErrNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !acct.Active {
		return Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
