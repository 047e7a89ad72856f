package metadata

import (
	"fmt"
	"time"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

// Kind describes one reference catalog.
type Kind struct {
	Slug     string
	Table    string
	Resource rbac.Resource
}

// Supported catalogs.
var (
	Situacoes     = Kind{Slug: "situacoes", Table: "Situacao", Resource: rbac.ResourceSituacao}
	FormasEntrada = Kind{Slug: "formas-entrada", Table: "FormaEntrada", Resource: rbac.ResourceFormaEntrada}
	Setores       = Kind{Slug: "setores", Table: "Setor", Resource: rbac.ResourceSetor}
)

// Kinds lists every catalog.
func Kinds() []Kind {
	return []Kind{Situacoes, FormasEntrada, Setores}
}

// Item is one catalog row.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	// ErrNotFound is returned for unknown ids.
	ErrNotFound = fmt.Errorf("metadata: %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when a name collides after normalization.
	ErrDuplicate = fmt.Errorf("metadata: name already in use: %w", httpx.ErrDuplicate)
	// ErrInvalid wraps input validation failures.
	ErrInvalid = fmt.Errorf("metadata: %w", httpx.ErrValidation)
)
