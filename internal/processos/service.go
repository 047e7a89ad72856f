package processos

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the persistence contract for processos.
type Store interface {
	List(ctx context.Context, f Filter, limit, offset int) ([]Processo, error)
	Get(ctx context.Context, id int64) (Processo, error)
	Create(ctx context.Context, p Processo) (Processo, error)
	Update(ctx context.Context, p Processo) (Processo, error)
}

// Service implements the processo workflow.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the service.
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New(), now: time.Now}
}

// List returns one page of processos.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	page := f.Page
	if page <= 0 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	rows, err := s.store.List(ctx, f, size+1, (page-1)*size)
	if err != nil {
		return Page{}, err
	}
	hasNext := len(rows) > size
	if hasNext {
		rows = rows[:size]
	}
	if rows == nil {
		rows = []Processo{}
	}
	return Page{Rows: rows, Page: page, PageSize: size, HasNext: hasNext}, nil
}

// Get loads one active processo.
func (s *Service) Get(ctx context.Context, id int64) (Processo, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Processo{}, err
	}
	if !p.Active {
		return Processo{}, ErrNotFound
	}
	return p, nil
}

// Create registers a processo.
func (s *Service) Create(ctx context.Context, in Input) (Processo, error) {
	if err := s.check(&in); err != nil {
		return Processo{}, err
	}
	p := Processo{Active: true}
	apply(&p, in)
	return s.store.Create(ctx, p)
}

// Update replaces the writable fields and returns the row before and after.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Processo, Processo, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return Processo{}, Processo{}, err
	}
	if err := s.check(&in); err != nil {
		return Processo{}, Processo{}, err
	}
	next := before
	apply(&next, in)
	if next.Numero == "" {
		next.Numero = before.Numero
	}
	after, err := s.store.Update(ctx, next)
	if err != nil {
		return Processo{}, Processo{}, err
	}
	return before, after, nil
}

// Delete soft-deletes a processo.
func (s *Service) Delete(ctx context.Context, id int64) (Processo, Processo, error) {
	return s.mutate(ctx, id, func(p *Processo) error {
		p.Active = false
		return nil
	})
}

// Forward moves a processo to another situacao.
func (s *Service) Forward(ctx context.Context, id, situacaoID int64) (Processo, Processo, error) {
	return s.mutate(ctx, id, func(p *Processo) error {
		if situacaoID <= 0 {
			return fmt.Errorf("situacaoId obrigatorio: %w", ErrInvalid)
		}
		p.SituacaoID = situacaoID
		return nil
	})
}

// Assign sets or clears the responsible user.
func (s *Service) Assign(ctx context.Context, id int64, responsavelID *int64) (Processo, Processo, error) {
	return s.mutate(ctx, id, func(p *Processo) error {
		if responsavelID != nil && *responsavelID <= 0 {
			return fmt.Errorf("responsavelId invalido: %w", ErrInvalid)
		}
		p.ResponsavelID = responsavelID
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id int64, change func(*Processo) error) (Processo, Processo, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return Processo{}, Processo{}, err
	}
	next := before
	if err := change(&next); err != nil {
		return Processo{}, Processo{}, err
	}
	after, err := s.store.Update(ctx, next)
	if err != nil {
		return Processo{}, Processo{}, err
	}
	return before, after, nil
}

func (s *Service) check(in *Input) error {
	in.Numero = strings.TrimSpace(in.Numero)
	in.Requerente = strings.TrimSpace(in.Requerente)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s: %s: %w", verrs[0].Field(), verrs[0].Tag(), ErrInvalid)
		}
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	if in.DataEntrada.IsZero() {
		in.DataEntrada = NewDate(s.now())
	}
	if in.Prazo != nil && !in.Prazo.IsZero() && in.Prazo.Before(in.DataEntrada.Time) {
		return fmt.Errorf("prazo anterior a data de entrada: %w", ErrInvalid)
	}
	return nil
}

func apply(p *Processo, in Input) {
	p.Numero = in.Numero
	p.Requerente = in.Requerente
	p.Email = in.Email
	p.Descricao = in.Descricao
	p.SituacaoID = in.SituacaoID
	p.FormaEntradaID = in.FormaEntradaID
	p.SetorID = in.SetorID
	p.ResponsavelID = in.ResponsavelID
	p.DataEntrada = in.DataEntrada
	p.Prazo = in.Prazo
	if p.Prazo != nil && p.Prazo.IsZero() {
		p.Prazo = nil
	}
}

// Export returns every processo matching f as CSV.
func (s *Service) Export(ctx context.Context, f Filter) ([]byte, error) {
	rows, err := s.store.List(ctx, f, 0, 0)
	if err != nil {
		return nil, err
	}
	return WriteCSV(rows)
}

var csvHeader = []string{"id", "numero", "requerente", "email", "situacaoId", "formaEntradaId", "setorId", "responsavelId", "dataEntrada", "prazo", "active"}

// WriteCSV encodes processos as CSV with a header row.
func WriteCSV(rows []Processo) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, p := range rows {
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Numero,
			p.Requerente,
			p.Email,
			strconv.FormatInt(p.SituacaoID, 10),
			strconv.FormatInt(p.FormaEntradaID, 10),
			strconv.FormatInt(p.SetorID, 10),
			optionalID(p.ResponsavelID),
			p.DataEntrada.Format(dateLayout),
			optionalDate(p.Prazo),
			strconv.FormatBool(p.Active),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func optionalDate(d *Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}
