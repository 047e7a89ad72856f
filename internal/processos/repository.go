package processos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backlog-dim/backlog-dim/internal/platform/db"
)

// Repository persists processos in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, numero, requerente, email, descricao, "situacaoId", "formaEntradaId", "setorId",
"responsavelId", "dataEntrada", prazo, active, "createdAt", "updatedAt"`

func scanProcesso(row pgx.CollectableRow) (Processo, error) {
	var (
		p       Processo
		entrada time.Time
		prazo   *time.Time
	)
	err := row.Scan(&p.ID, &p.Numero, &p.Requerente, &p.Email, &p.Descricao, &p.SituacaoID, &p.FormaEntradaID, &p.SetorID,
		&p.ResponsavelID, &entrada, &prazo, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Processo{}, err
	}
	p.DataEntrada = NewDate(entrada)
	if prazo != nil {
		d := NewDate(*prazo)
		p.Prazo = &d
	}
	return p, nil
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("referencia invalida: %w", ErrInvalid)
	}
	return err
}

// List returns processos matching f, newest first. A zero limit returns every row.
func (r *Repository) List(ctx context.Context, f Filter, limit, offset int) ([]Processo, error) {
	query := `SELECT ` + columns + ` FROM "Processo" WHERE 1=1`
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args)))
	}
	if !f.IncludeInactive {
		query += " AND active"
	}
	if f.SituacaoID > 0 {
		add(`"situacaoId" = ?`, f.SituacaoID)
	}
	if f.SetorID > 0 {
		add(`"setorId" = ?`, f.SetorID)
	}
	if f.ResponsavelID > 0 {
		add(`"responsavelId" = ?`, f.ResponsavelID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(numero ILIKE ? ESCAPE '\' OR requerente ILIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\')`, db.ContainsPattern(s))
	}
	query += ` ORDER BY "dataEntrada" DESC, id DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProcesso)
}

// Get loads one processo, active or not.
func (r *Repository) Get(ctx context.Context, id int64) (Processo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM "Processo" WHERE id = $1`, id)
	if err != nil {
		return Processo{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProcesso)
	return p, mapWriteError(err)
}

// Create inserts p. An empty Numero is generated from the year of DataEntrada
// under a transaction-scoped advisory lock.
func (r *Repository) Create(ctx context.Context, p Processo) (Processo, error) {
	var created Processo
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if p.Numero == "" {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('processo_numero'))`); err != nil {
				return err
			}
			year := p.DataEntrada.Year()
			var last string
			err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(numero), '') FROM "Processo" WHERE numero ~ $1`, NumeroPattern(year)).Scan(&last)
			if err != nil {
				return err
			}
			p.Numero = NextNumero(year, last)
		}
		rows, err := tx.Query(ctx, `INSERT INTO "Processo" (numero, requerente, email, descricao, "situacaoId", "formaEntradaId", "setorId", "responsavelId", "dataEntrada", prazo, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
RETURNING `+columns,
			p.Numero, p.Requerente, p.Email, p.Descricao, p.SituacaoID, p.FormaEntradaID, p.SetorID, p.ResponsavelID,
			p.DataEntrada.Time, datePtr(p.Prazo))
		if err != nil {
			return err
		}
		created, err = pgx.CollectExactlyOneRow(rows, scanProcesso)
		return err
	})
	return created, mapWriteError(err)
}

// Update writes every mutable column of p.
func (r *Repository) Update(ctx context.Context, p Processo) (Processo, error) {
	rows, err := r.pool.Query(ctx, `UPDATE "Processo" SET numero = $2, requerente = $3, email = $4, descricao = $5,
"situacaoId" = $6, "formaEntradaId" = $7, "setorId" = $8, "responsavelId" = $9, "dataEntrada" = $10, prazo = $11, active = $12,
"updatedAt" = NOW()
WHERE id = $1
RETURNING `+columns,
		p.ID, p.Numero, p.Requerente, p.Email, p.Descricao, p.SituacaoID, p.FormaEntradaID, p.SetorID, p.ResponsavelID,
		p.DataEntrada.Time, datePtr(p.Prazo), p.Active)
	if err != nil {
		return Processo{}, mapWriteError(err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, scanProcesso)
	return updated, mapWriteError(err)
}

func datePtr(d *Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
