package processos

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return fmt.Errorf("data invalida %q: %w", *raw, httpx.ErrValidation)
	}
	*d = Date{t}
	return nil
}

// Processo is an LGPD complaint case.
type Processo struct {
	ID             int64     `json:"id"`
	Numero         string    `json:"numero"`
	Requerente     string    `json:"requerente"`
	Email          string    `json:"email,omitempty"`
	Descricao      string    `json:"descricao,omitempty"`
	SituacaoID     int64     `json:"situacaoId"`
	FormaEntradaID int64     `json:"formaEntradaId"`
	SetorID        int64     `json:"setorId"`
	ResponsavelID  *int64    `json:"responsavelId"`
	DataEntrada    Date      `json:"dataEntrada"`
	Prazo          *Date     `json:"prazo"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Input is the writable part of a Processo.
type Input struct {
	Numero         string `json:"numero" validate:"omitempty,max=20"`
	Requerente     string `json:"requerente" validate:"required,max=200"`
	Email          string `json:"email" validate:"omitempty,email,max=200"`
	Descricao      string `json:"descricao" validate:"max=4000"`
	SituacaoID     int64  `json:"situacaoId" validate:"required,gt=0"`
	FormaEntradaID int64  `json:"formaEntradaId" validate:"required,gt=0"`
	SetorID        int64  `json:"setorId" validate:"required,gt=0"`
	ResponsavelID  *int64 `json:"responsavelId" validate:"omitempty,gt=0"`
	DataEntrada    Date   `json:"dataEntrada"`
	Prazo          *Date  `json:"prazo"`
}

// Filter narrows listings and exports.
type Filter struct {
	SituacaoID      int64
	SetorID         int64
	ResponsavelID   int64
	Search          string
	IncludeInactive bool
	Page            int
	PageSize        int
}

// Page is one listing page.
type Page struct {
	Rows     []Processo `json:"rows"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	HasNext  bool       `json:"hasNext"`
}

var (
	// ErrNotFound is returned for unknown processos.
	ErrNotFound = fmt.Errorf("processos: %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when the numero is taken.
	ErrDuplicate = fmt.Errorf("processos: numero already in use: %w", httpx.ErrDuplicate)
	// ErrInvalid wraps input validation failures.
	ErrInvalid = fmt.Errorf("processos: %w", httpx.ErrValidation)
)

// NumeroPattern matches the numbers generated for year. Manually entered
// numbers outside this shape never drive the sequence.
func NumeroPattern(year int) string {
	return fmt.Sprintf(`^%04d/[0-9]{6}$`, year)
}

// NextNumero returns the number following last within year. last is the
// highest number matching NumeroPattern(year), or empty when there is none.
func NextNumero(year int, last string) string {
	seq := 0
	if regexp.MustCompile(NumeroPattern(year)).MatchString(last) {
		_, digits, _ := strings.Cut(last, "/")
		if n, err := strconv.Atoi(digits); err == nil {
			seq = n
		}
	}
	return fmt.Sprintf("%04d/%06d", year, seq+1)
}
