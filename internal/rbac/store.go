package rbac

import "context"

// GraphReader is the read side needed to resolve inheritance.
type GraphReader interface {
	ProfileByName(ctx context.Context, name string) (Profile, error)
	ParentEdges(ctx context.Context, childIDs []int64) ([]ParentEdge, error)
}

// PermissionReader loads permission rows for a resolved profile set.
type PermissionReader interface {
	PermissionsForProfiles(ctx context.Context, names []string) ([]Permission, error)
}

// Store is the full profile graph store.
type Store interface {
	GraphReader
	PermissionReader

	ProfileByID(ctx context.Context, id int64) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	CreateProfile(ctx context.Context, name string) (Profile, error)
	UpdateProfile(ctx context.Context, p Profile) (Profile, error)

	ListEdges(ctx context.Context) ([]Edge, error)
	ListParents(ctx context.Context, childID int64) ([]Profile, error)
	AddEdge(ctx context.Context, e Edge) error
	RemoveEdge(ctx context.Context, e Edge) error

	ProfilePermissions(ctx context.Context, profileID int64) ([]Permission, error)
	UpsertPermission(ctx context.Context, p Permission) (Permission, error)
	DeactivatePermission(ctx context.Context, profileID, permissionID int64) (Permission, error)
}
