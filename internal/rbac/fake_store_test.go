package rbac

import (
	"context"
	"sort"
	"sync"
)

type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	profiles    map[int64]Profile
	edges       []Edge
	permissions []Permission
	permLoads   int
	failEdges   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[int64]Profile{}}
}

func (f *fakeStore) profile(name string, active bool) Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := Profile{ID: f.nextID, Name: name, Active: active}
	f.profiles[p.ID] = p
	return p
}

func (f *fakeStore) inherit(child, parent Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, Edge{ParentID: parent.ID, ChildID: child.ID})
}

func (f *fakeStore) grant(p Profile, action Action, resource Resource, granted bool) Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	perm := Permission{ID: f.nextID, ProfileID: p.ID, Action: action, Resource: resource, Granted: granted, Active: true}
	f.permissions = append(f.permissions, perm)
	return perm
}

func (f *fakeStore) setActive(p Profile, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Active = active
	f.profiles[p.ID] = p
}

func (f *fakeStore) ProfileByName(_ context.Context, name string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (f *fakeStore) ProfileByID(_ context.Context, id int64) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListProfiles(context.Context) ([]Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreateProfile(_ context.Context, name string) (Profile, error) {
	if _, err := f.ProfileByName(context.Background(), name); err == nil {
		return Profile{}, ErrDuplicate
	}
	return f.profile(name, true), nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, p Profile) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.ID]; !ok {
		return Profile{}, ErrNotFound
	}
	f.profiles[p.ID] = p
	return p, nil
}

func (f *fakeStore) ParentEdges(_ context.Context, childIDs []int64) ([]ParentEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdges != nil {
		return nil, f.failEdges
	}
	want := map[int64]bool{}
	for _, id := range childIDs {
		want[id] = true
	}
	var out []ParentEdge
	for _, e := range f.edges {
		if !want[e.ChildID] {
			continue
		}
		parent := f.profiles[e.ParentID]
		out = append(out, ParentEdge{ChildID: e.ChildID, ParentID: e.ParentID, ParentName: parent.Name, ParentActive: parent.Active})
	}
	return out, nil
}

func (f *fakeStore) ListEdges(context.Context) ([]Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Edge(nil), f.edges...), nil
}

func (f *fakeStore) ListParents(_ context.Context, childID int64) ([]Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Profile
	for _, e := range f.edges {
		if e.ChildID == childID {
			out = append(out, f.profiles[e.ParentID])
		}
	}
	return out, nil
}

func (f *fakeStore) AddEdge(_ context.Context, e Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.edges {
		if cur == e {
			return ErrDuplicate
		}
	}
	f.edges = append(f.edges, e)
	return nil
}

func (f *fakeStore) RemoveEdge(_ context.Context, e Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.edges {
		if cur == e {
			f.edges = append(f.edges[:i], f.edges[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) ProfilePermissions(_ context.Context, profileID int64) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Permission
	for _, p := range f.permissions {
		if p.ProfileID == profileID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) PermissionsForProfiles(_ context.Context, names []string) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permLoads++
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var out []Permission
	for _, p := range f.permissions {
		owner := f.profiles[p.ProfileID]
		if p.Active && owner.Active && want[owner.Name] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertPermission(_ context.Context, p Permission) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.permissions {
		if cur.ProfileID == p.ProfileID && cur.Action == p.Action && cur.Resource == p.Resource {
			f.permissions[i].Granted = p.Granted
			f.permissions[i].Active = true
			return f.permissions[i], nil
		}
	}
	f.nextID++
	p.ID = f.nextID
	p.Active = true
	f.permissions = append(f.permissions, p)
	return p, nil
}

func (f *fakeStore) DeactivatePermission(_ context.Context, profileID, permissionID int64) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.permissions {
		if cur.ID == permissionID && cur.ProfileID == profileID {
			f.permissions[i].Active = false
			return f.permissions[i], nil
		}
	}
	return Permission{}, ErrNotFound
}

func (f *fakeStore) loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permLoads
}
