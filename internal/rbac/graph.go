package rbac

// Graph is an in-memory adjacency list of inheritance edges keyed by child id.
type Graph struct {
	parents map[int64][]int64
}

// NewGraph builds a graph from edges.
func NewGraph(edges []Edge) *Graph {
	g := &Graph{parents: make(map[int64][]int64, len(edges))}
	for _, e := range edges {
		g.Add(e)
	}
	return g
}

// Add inserts an edge.
func (g *Graph) Add(e Edge) {
	g.parents[e.ChildID] = append(g.parents[e.ChildID], e.ParentID)
}

// Ancestors returns every id reachable from id through parent links, excluding id
// unless a cycle leads back to it.
func (g *Graph) Ancestors(id int64) map[int64]struct{} {
	seen := make(map[int64]struct{})
	stack := append([]int64(nil), g.parents[id]...)
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, g.parents[cur]...)
	}
	return seen
}

// WouldCycle reports whether adding e closes a loop.
func (g *Graph) WouldCycle(e Edge) bool {
	if e.ParentID == e.ChildID {
		return true
	}
	_, ok := g.Ancestors(e.ParentID)[e.ChildID]
	return ok
}
