package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backlog-dim/backlog-dim/internal/platform/db"
)

// Repository persists catalog rows. Table names come from Kind and never from input.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func table(kind Kind) string {
	return pgx.Identifier{kind.Table}.Sanitize()
}

func scanItem(row pgx.CollectableRow) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Active, &it.CreatedAt)
	return it, err
}

// List returns rows ordered by name.
func (r *Repository) List(ctx context.Context, kind Kind) ([]Item, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, nome, active, "createdAt" FROM %s ORDER BY nome`, table(kind)))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanItem)
}

// Get loads one row.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (Item, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, nome, active, "createdAt" FROM %s WHERE id = $1`, table(kind)), id)
	if err != nil {
		return Item{}, err
	}
	return one(pgx.CollectExactlyOneRow(rows, scanItem))
}

// Insert stores an active row.
func (r *Repository) Insert(ctx context.Context, kind Kind, name string) (Item, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`INSERT INTO %s (nome, active) VALUES ($1, TRUE) RETURNING id, nome, active, "createdAt"`, table(kind)), name)
	if err != nil {
		return Item{}, err
	}
	return one(pgx.CollectExactlyOneRow(rows, scanItem))
}

// Update writes name and active flag.
func (r *Repository) Update(ctx context.Context, kind Kind, it Item) (Item, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`UPDATE %s SET nome = $2, active = $3 WHERE id = $1 RETURNING id, nome, active, "createdAt"`, table(kind)), it.ID, it.Name, it.Active)
	if err != nil {
		return Item{}, err
	}
	return one(pgx.CollectExactlyOneRow(rows, scanItem))
}

func one(it Item, err error) (Item, error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Item{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return Item{}, ErrDuplicate
	}
	return it, err
}
