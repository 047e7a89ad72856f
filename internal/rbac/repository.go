package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backlog-dim/backlog-dim/internal/platform/db"
)

// Repository is the Postgres backed profile graph store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// ProfileByName fetches a profile by its unique name.
func (r *Repository) ProfileByName(ctx context.Context, name string) (Profile, error) {
	return r.scanProfile(r.pool.QueryRow(ctx, `SELECT id, nome, active FROM "Profile" WHERE nome = $1`, name))
}

// ProfileByID fetches a profile by id.
func (r *Repository) ProfileByID(ctx context.Context, id int64) (Profile, error) {
	return r.scanProfile(r.pool.QueryRow(ctx, `SELECT id, nome, active FROM "Profile" WHERE id = $1`, id))
}

func (r *Repository) scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// ListProfiles returns every profile ordered by name.
func (r *Repository) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nome, active FROM "Profile" ORDER BY nome`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Profile, error) {
		var p Profile
		err := row.Scan(&p.ID, &p.Name, &p.Active)
		return p, err
	})
}

// CreateProfile inserts an active profile.
func (r *Repository) CreateProfile(ctx context.Context, name string) (Profile, error) {
	p, err := r.scanProfile(r.pool.QueryRow(ctx, `INSERT INTO "Profile" (nome, active) VALUES ($1, TRUE) RETURNING id, nome, active`, name))
	if db.IsUniqueViolation(err) {
		return Profile{}, fmt.Errorf("perfil %q: %w", name, ErrDuplicate)
	}
	return p, err
}

// UpdateProfile renames or toggles a profile.
func (r *Repository) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	updated, err := r.scanProfile(r.pool.QueryRow(ctx, `UPDATE "Profile" SET nome = $2, active = $3 WHERE id = $1 RETURNING id, nome, active`, p.ID, p.Name, p.Active))
	if db.IsUniqueViolation(err) {
		return Profile{}, fmt.Errorf("perfil %q: %w", p.Name, ErrDuplicate)
	}
	return updated, err
}

// ParentEdges returns edges whose child is in childIDs, joined with the parent profile.
func (r *Repository) ParentEdges(ctx context.Context, childIDs []int64) ([]ParentEdge, error) {
	if len(childIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT h."childId", h."parentId", p.nome, p.active
FROM "PerfilHeranca" h
JOIN "Profile" p ON p.id = h."parentId"
WHERE h."childId" = ANY($1)
ORDER BY h."childId", h."parentId"`, childIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ParentEdge, error) {
		var e ParentEdge
		err := row.Scan(&e.ChildID, &e.ParentID, &e.ParentName, &e.ParentActive)
		return e, err
	})
}

// ListEdges returns the whole inheritance edge table.
func (r *Repository) ListEdges(ctx context.Context) ([]Edge, error) {
	rows, err := r.pool.Query(ctx, `SELECT "parentId", "childId" FROM "PerfilHeranca"`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Edge, error) {
		var e Edge
		err := row.Scan(&e.ParentID, &e.ChildID)
		return e, err
	})
}

// ListParents returns the direct parents of a profile.
func (r *Repository) ListParents(ctx context.Context, childID int64) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.nome, p.active
FROM "PerfilHeranca" h
JOIN "Profile" p ON p.id = h."parentId"
WHERE h."childId" = $1
ORDER BY p.nome`, childID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Profile, error) {
		var p Profile
		err := row.Scan(&p.ID, &p.Name, &p.Active)
		return p, err
	})
}

// AddEdge inserts an inheritance edge.
func (r *Repository) AddEdge(ctx context.Context, e Edge) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO "PerfilHeranca" ("parentId", "childId") VALUES ($1, $2)`, e.ParentID, e.ChildID)
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("heranca %d->%d: %w", e.ParentID, e.ChildID, ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("heranca %d->%d: %w", e.ParentID, e.ChildID, ErrNotFound)
	}
	return err
}

// RemoveEdge deletes an inheritance edge. Returns ErrNotFound if nothing was deleted.
func (r *Repository) RemoveEdge(ctx context.Context, e Edge) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM "PerfilHeranca" WHERE "parentId" = $1 AND "childId" = $2`, e.ParentID, e.ChildID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const permissionColumns = `id, "perfilId", acao, recurso, permitido, active`

func scanPermission(row pgx.CollectableRow) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.ProfileID, &p.Action, &p.Resource, &p.Granted, &p.Active)
	return p, err
}

// PermissionsForProfiles returns active permission rows of the named active profiles.
func (r *Repository) PermissionsForProfiles(ctx context.Context, names []string) ([]Permission, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT pm.id, pm."perfilId", pm.acao, pm.recurso, pm.permitido, pm.active
FROM "Permissao" pm
JOIN "Profile" p ON p.id = pm."perfilId"
WHERE p.nome = ANY($1) AND p.active AND pm.active
ORDER BY pm.id`, names)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPermission)
}

// ProfilePermissions returns the permission rows stored directly on a profile.
func (r *Repository) ProfilePermissions(ctx context.Context, profileID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM "Permissao" WHERE "perfilId" = $1 ORDER BY recurso, acao`, profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPermission)
}

// UpsertPermission creates or reactivates the (profile, action, resource) row.
func (r *Repository) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	rows, err := r.pool.Query(ctx, `INSERT INTO "Permissao" ("perfilId", acao, recurso, permitido, active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT ("perfilId", acao, recurso) DO UPDATE SET permitido = EXCLUDED.permitido, active = TRUE
RETURNING `+permissionColumns, p.ProfileID, p.Action, p.Resource, p.Granted)
	if err != nil {
		return Permission{}, err
	}
	saved, err := pgx.CollectExactlyOneRow(rows, scanPermission)
	if db.IsForeignKeyViolation(err) {
		return Permission{}, fmt.Errorf("perfil %d: %w", p.ProfileID, ErrNotFound)
	}
	return saved, err
}

// DeactivatePermission soft-deletes a permission row of the given profile.
func (r *Repository) DeactivatePermission(ctx context.Context, profileID, permissionID int64) (Permission, error) {
	rows, err := r.pool.Query(ctx, `UPDATE "Permissao" SET active = FALSE WHERE id = $1 AND "perfilId" = $2 RETURNING `+permissionColumns, permissionID, profileID)
	if err != nil {
		return Permission{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPermission)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return p, err
}
