package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ListProfiles returns all profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.store.ListProfiles(ctx)
}

// Profile fetches one profile.
func (s *Service) Profile(ctx context.Context, id int64) (Profile, error) {
	return s.store.ProfileByID(ctx, id)
}

// CreateProfile registers a new active profile.
func (s *Service) CreateProfile(ctx context.Context, name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, fmt.Errorf("nome obrigatorio: %w", ErrInvalid)
	}
	return s.store.CreateProfile(ctx, name)
}

// ProfileUpdate carries optional profile changes.
type ProfileUpdate struct {
	Name   *string `json:"nome"`
	Active *bool   `json:"active"`
}

// UpdateProfile applies changes and returns the row before and after.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (Profile, Profile, error) {
	before, err := s.store.ProfileByID(ctx, id)
	if err != nil {
		return Profile{}, Profile{}, err
	}
	next := before
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Profile{}, Profile{}, fmt.Errorf("nome obrigatorio: %w", ErrInvalid)
		}
		next.Name = name
	}
	if upd.Active != nil {
		next.Active = *upd.Active
	}
	after, err := s.store.UpdateProfile(ctx, next)
	if err != nil {
		return Profile{}, Profile{}, err
	}
	return before, after, nil
}

// ProfilePermissions lists the rows stored directly on a profile.
func (s *Service) ProfilePermissions(ctx context.Context, profileID int64) ([]Permission, error) {
	if _, err := s.store.ProfileByID(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.ProfilePermissions(ctx, profileID)
}

// UpsertPermission stores a grant or deny row on a profile.
func (s *Service) UpsertPermission(ctx context.Context, profileID int64, action, resource string, granted bool) (Permission, error) {
	a, err := ParseAction(action)
	if err != nil {
		return Permission{}, err
	}
	r, err := ParseResource(resource)
	if err != nil {
		return Permission{}, err
	}
	if _, err := s.store.ProfileByID(ctx, profileID); err != nil {
		return Permission{}, err
	}
	return s.store.UpsertPermission(ctx, Permission{ProfileID: profileID, Action: a, Resource: r, Granted: granted})
}

// RemovePermission soft-deletes a permission row.
func (s *Service) RemovePermission(ctx context.Context, profileID, permissionID int64) (Permission, error) {
	return s.store.DeactivatePermission(ctx, profileID, permissionID)
}

// Parents lists direct parents of a profile.
func (s *Service) Parents(ctx context.Context, childID int64) ([]Profile, error) {
	if _, err := s.store.ProfileByID(ctx, childID); err != nil {
		return nil, err
	}
	return s.store.ListParents(ctx, childID)
}

// AddParent makes childID inherit from parentID. Edges closing a loop are rejected
// with ErrCycle. Success invalidates the permission cache.
func (s *Service) AddParent(ctx context.Context, childID, parentID int64) error {
	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	edge := Edge{ParentID: parentID, ChildID: childID}
	if _, err := s.store.ProfileByID(ctx, childID); err != nil {
		return err
	}
	if _, err := s.store.ProfileByID(ctx, parentID); err != nil {
		return err
	}
	edges, err := s.store.ListEdges(ctx)
	if err != nil {
		return err
	}
	if NewGraph(edges).WouldCycle(edge) {
		return fmt.Errorf("%d->%d: %w", parentID, childID, ErrCycle)
	}
	if err := s.store.AddEdge(ctx, edge); err != nil {
		return err
	}
	s.invalidateAfterEdgeWrite(ctx)
	return nil
}

// RemoveParent deletes an inheritance edge and invalidates the permission cache.
func (s *Service) RemoveParent(ctx context.Context, childID, parentID int64) error {
	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	if err := s.store.RemoveEdge(ctx, Edge{ParentID: parentID, ChildID: childID}); err != nil {
		return err
	}
	s.invalidateAfterEdgeWrite(ctx)
	return nil
}

func (s *Service) invalidateAfterEdgeWrite(ctx context.Context) {
	if err := s.InvalidateCache(ctx); err != nil {
		s.logger.Error("rbac cache invalidate", slog.Any("error", err))
	}
}

// EffectiveForProfile resolves the grants of a profile by id, bypassing the cache.
func (s *Service) EffectiveForProfile(ctx context.Context, profileID int64) ([]Grant, error) {
	p, err := s.store.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.ResolveEffectivePermissions(ctx, p.Name)
}
