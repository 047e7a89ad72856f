package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolver expands a profile into the set of profiles it inherits from.
type Resolver struct {
	graph GraphReader
}

// NewResolver constructs a resolver over the graph store.
func NewResolver(graph GraphReader) *Resolver {
	return &Resolver{graph: graph}
}

// ResolveAncestorNames returns the base profile plus every active ancestor reachable
// through active profiles. A missing or inactive base yields an empty set.
func (r *Resolver) ResolveAncestorNames(ctx context.Context, name string) (NameSet, error) {
	result := NameSet{}
	name = strings.TrimSpace(name)
	if name == "" {
		return result, nil
	}
	base, err := r.graph.ProfileByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("rbac: resolve %q: %w", name, err)
	}
	if !base.Active {
		return result, nil
	}

	visited := map[int64]struct{}{base.ID: {}}
	result[base.Name] = struct{}{}
	frontier := []int64{base.ID}
	for len(frontier) > 0 {
		edges, err := r.graph.ParentEdges(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("rbac: resolve %q: %w", name, err)
		}
		next := make([]int64, 0, len(edges))
		for _, e := range edges {
			if !e.ParentActive {
				continue
			}
			if _, seen := visited[e.ParentID]; seen {
				continue
			}
			visited[e.ParentID] = struct{}{}
			result[e.ParentName] = struct{}{}
			next = append(next, e.ParentID)
		}
		frontier = next
	}
	return result, nil
}
