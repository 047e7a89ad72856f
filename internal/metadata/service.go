package metadata

import (
	"context"
	"fmt"
)

// Store is the persistence contract for catalogs.
type Store interface {
	List(ctx context.Context, kind Kind) ([]Item, error)
	Get(ctx context.Context, kind Kind, id int64) (Item, error)
	Insert(ctx context.Context, kind Kind, name string) (Item, error)
	Update(ctx context.Context, kind Kind, it Item) (Item, error)
}

// Service applies naming rules on top of the store.
type Service struct {
	store Store
}

// NewService constructs the service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns rows, optionally including inactive ones.
func (s *Service) List(ctx context.Context, kind Kind, includeInactive bool) ([]Item, error) {
	items, err := s.store.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Active || includeInactive {
			out = append(out, it)
		}
	}
	return out, nil
}

// Get loads one row.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (Item, error) {
	return s.store.Get(ctx, kind, id)
}

// Create adds a row after checking the normalized name is free.
func (s *Service) Create(ctx context.Context, kind Kind, name string) (Item, error) {
	name, err := s.checkName(ctx, kind, 0, name)
	if err != nil {
		return Item{}, err
	}
	return s.store.Insert(ctx, kind, name)
}

// Rename changes a row's name and returns the row before and after.
func (s *Service) Rename(ctx context.Context, kind Kind, id int64, name string) (Item, Item, error) {
	before, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return Item{}, Item{}, err
	}
	name, err = s.checkName(ctx, kind, id, name)
	if err != nil {
		return Item{}, Item{}, err
	}
	next := before
	next.Name = name
	after, err := s.store.Update(ctx, kind, next)
	if err != nil {
		return Item{}, Item{}, err
	}
	return before, after, nil
}

// SetActive toggles a row and returns the row before and after.
func (s *Service) SetActive(ctx context.Context, kind Kind, id int64, active bool) (Item, Item, error) {
	before, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return Item{}, Item{}, err
	}
	next := before
	next.Active = active
	after, err := s.store.Update(ctx, kind, next)
	if err != nil {
		return Item{}, Item{}, err
	}
	return before, after, nil
}

func (s *Service) checkName(ctx context.Context, kind Kind, selfID int64, raw string) (string, error) {
	name := CleanName(raw)
	if name == "" {
		return "", fmt.Errorf("nome obrigatorio: %w", ErrInvalid)
	}
	if len([]rune(name)) > 120 {
		return "", fmt.Errorf("nome muito longo: %w", ErrInvalid)
	}
	existing, err := s.store.List(ctx, kind)
	if err != nil {
		return "", err
	}
	key := NormalizeName(name)
	for _, it := range existing {
		if it.ID != selfID && NormalizeName(it.Name) == key {
			return "", fmt.Errorf("%q: %w", it.Name, ErrDuplicate)
		}
	}
	return name, nil
}
