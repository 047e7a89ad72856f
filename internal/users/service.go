package users

import (
	"context"
	"fmt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	SetProfile(ctx context.Context, id int64, profileID *int64) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Get loads one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// ByEmail loads one user by email.
func (s *Service) ByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// AssignProfile changes the user's profile and returns the row before and after.
func (s *Service) AssignProfile(ctx context.Context, id int64, profileID *int64) (User, User, error) {
	before, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, User{}, err
	}
	if err := s.repo.SetProfile(ctx, id, profileID); err != nil {
		return User{}, User{}, fmt.Errorf("users: assign profile: %w", err)
	}
	after, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, User{}, err
	}
	return before, after, nil
}
