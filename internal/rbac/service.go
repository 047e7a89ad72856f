package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Service resolves effective permissions and answers authorization checks.
type Service struct {
	store    Store
	resolver *Resolver
	cache    PermissionCache
	metrics  *Metrics
	logger   *slog.Logger

	group  singleflight.Group
	edgeMu sync.Mutex
}

// Option configures the service.
type Option func(*Service)

// WithCache sets the permission cache. Without one every check hits the store.
func WithCache(cache PermissionCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the RBAC service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, resolver: NewResolver(store), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the inheritance resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// ResolveEffectivePermissions aggregates the permission rows of a profile and its
// ancestors into one grant per (action, resource). A granted row wins over a denied
// one; the result keeps first-seen order.
func (s *Service) ResolveEffectivePermissions(ctx context.Context, profile string) ([]Grant, error) {
	names, err := s.resolver.ResolveAncestorNames(ctx, profile)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []Grant{}, nil
	}
	rows, err := s.store.PermissionsForProfiles(ctx, names.Sorted())
	if err != nil {
		return nil, fmt.Errorf("rbac: permissions for %q: %w", profile, err)
	}
	return aggregate(rows), nil
}

func aggregate(rows []Permission) []Grant {
	type key struct {
		action   Action
		resource Resource
	}
	index := make(map[key]int, len(rows))
	grants := make([]Grant, 0, len(rows))
	for _, row := range rows {
		k := key{row.Action, row.Resource}
		pos, ok := index[k]
		if !ok {
			index[k] = len(grants)
			grants = append(grants, Grant{Action: row.Action, Resource: row.Resource, Granted: row.Granted})
			continue
		}
		if row.Granted {
			grants[pos].Granted = true
		}
	}
	return grants
}

// EffectivePermissions returns the identity's grants, served from cache when fresh.
// A fill only lands in the cache if no invalidation happened while it resolved.
func (s *Service) EffectivePermissions(ctx context.Context, id Identity) ([]Grant, error) {
	key := strings.ToLower(strings.TrimSpace(id.Email))
	cacheable := s.cache != nil && key != ""
	var gen int64
	if cacheable {
		grants, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("rbac cache get", slog.String("key", key), slog.Any("error", err))
		case ok:
			s.metrics.cacheResult("hit")
			return grants, nil
		}
		s.metrics.cacheResult("miss")
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.logger.Warn("rbac cache generation", slog.String("key", key), slog.Any("error", err))
			cacheable = false
		}
	}

	flight := key + "\x00" + id.Profile + "\x00" + strconv.FormatInt(gen, 10)
	v, err, _ := s.group.Do(flight, func() (interface{}, error) {
		grants, err := s.ResolveEffectivePermissions(ctx, id.Profile)
		if err != nil {
			return nil, err
		}
		if cacheable {
			if err := s.cache.Set(ctx, key, gen, grants); err != nil {
				s.logger.Warn("rbac cache set", slog.String("key", key), slog.Any("error", err))
			}
		}
		return grants, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneGrants(v.([]Grant)), nil
}

// Authorize reports whether the identity holds req.
func (s *Service) Authorize(ctx context.Context, id Identity, req Requirement) (bool, error) {
	grants, err := s.EffectivePermissions(ctx, id)
	if err != nil {
		s.metrics.decision("error")
		return false, err
	}
	if Allows(grants, req) {
		s.metrics.decision("allow")
		return true, nil
	}
	s.metrics.decision("deny")
	return false, nil
}

// InvalidateCache drops every cached grant list.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateAll(ctx)
}
