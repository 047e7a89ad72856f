package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backlog-dim/backlog-dim/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `SELECT u.id, u.email, u.nome, u."perfilId", COALESCE(p.nome, ''), u.active, u."createdAt", u."passwordHash"
FROM "User" u
LEFT JOIN "Profile" p ON p.id = u."perfilId"`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.ProfileID, &u.Profile, &u.Active, &u.CreatedAt, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// ListUsers returns all users ordered by name.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUser+` ORDER BY u.nome, u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FindByID loads one user.
func (r *Repository) FindByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
}

// FindByEmail loads one user by email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE lower(u.email) = lower($1)`, strings.TrimSpace(email)))
}

// SetProfile assigns a profile, or clears it when profileID is nil.
func (r *Repository) SetProfile(ctx context.Context, id int64, profileID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE "User" SET "perfilId" = $2 WHERE id = $1`, id, profileID)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("perfil %d: %w", *profileID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts an active user.
func (r *Repository) Create(ctx context.Context, in NewUser) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO "User" (email, nome, "passwordHash", "perfilId", active)
VALUES ($1, $2, $3, $4, TRUE) RETURNING id`, strings.TrimSpace(in.Email), in.Name, in.PasswordHash, in.ProfileID).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}
