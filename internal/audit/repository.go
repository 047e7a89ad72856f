package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backlog-dim/backlog-dim/internal/platform/db"
)

// Repository persists audit entries in "AuditLog". It only ever inserts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts the entry.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Table == "" || e.Action == "" {
		return errors.New("audit: entry requires table and action")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO "AuditLog" (tabela, acao, "userId", email, contexto, antes, depois, ip, "userAgent", "criadoEm")
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		e.Table, e.Action, e.UserID, e.Email, e.Context, nullJSON(e.Before), nullJSON(e.After),
		nullText(e.IP), nullText(e.UserAgent), toPgTime(e))
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List returns entries matching filters, newest first, limited by limit/offset.
// A limit of zero returns every matching row.
func (r *Repository) List(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	query := `SELECT id, tabela, acao, "userId", email, contexto, antes, depois, COALESCE(ip, ''), COALESCE("userAgent", ''), "criadoEm" FROM "AuditLog" WHERE 1=1`
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args)))
	}
	if !filters.From.IsZero() {
		add(`"criadoEm" >= ?`, filters.From)
	}
	if !filters.To.IsZero() {
		add(`"criadoEm" < ?`, filters.To)
	}
	if v := strings.TrimSpace(filters.Email); v != "" {
		add(`email ILIKE ? ESCAPE '\'`, db.ContainsPattern(v))
	}
	if v := strings.TrimSpace(filters.Table); v != "" {
		add(`tabela = ?`, v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add(`acao = ?`, v)
	}
	query += ` ORDER BY "criadoEm" DESC, id DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			userID pgtype.Int8
			before []byte
			after  []byte
		)
		if err := rows.Scan(&e.ID, &e.Table, &e.Action, &userID, &e.Email, &e.Context, &before, &after, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		e.Before = before
		e.After = after
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullText(v string) pgtype.Text {
	if strings.TrimSpace(v) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func toPgTime(e Entry) pgtype.Timestamptz {
	if e.CreatedAt.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: e.CreatedAt, Valid: true}
}
