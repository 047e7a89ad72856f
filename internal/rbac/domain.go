package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Action is the verb half of a permission.
type Action string

// Supported actions.
const (
	ActionExibir     Action = "Exibir"
	ActionCadastrar  Action = "Cadastrar"
	ActionEditar     Action = "Editar"
	ActionExcluir    Action = "Excluir"
	ActionDesativar  Action = "Desativar"
	ActionReativar   Action = "Reativar"
	ActionImportar   Action = "Importar"
	ActionExportar   Action = "Exportar"
	ActionAtribuir   Action = "Atribuir"
	ActionEncaminhar Action = "Encaminhar"
	ActionAprovar    Action = "Aprovar"
)

// Resource is the object half of a permission.
type Resource string

// Supported resources.
const (
	ResourceProcesso     Resource = "Processo"
	ResourceSituacao     Resource = "Situacao"
	ResourceFormaEntrada Resource = "FormaEntrada"
	ResourceSetor        Resource = "Setor"
	ResourcePerfil       Resource = "Perfil"
	ResourcePermissao    Resource = "Permissao"
	ResourceUsuario      Resource = "Usuario"
	ResourceAuditLog     Resource = "AuditLog"
)

// Actions lists every action in declaration order.
func Actions() []Action {
	return []Action{
		ActionExibir, ActionCadastrar, ActionEditar, ActionExcluir, ActionDesativar, ActionReativar,
		ActionImportar, ActionExportar, ActionAtribuir, ActionEncaminhar, ActionAprovar,
	}
}

// Resources lists every resource in declaration order.
func Resources() []Resource {
	return []Resource{
		ResourceProcesso, ResourceSituacao, ResourceFormaEntrada, ResourceSetor,
		ResourcePerfil, ResourcePermissao, ResourceUsuario, ResourceAuditLog,
	}
}

// ParseAction validates a raw action name.
func ParseAction(raw string) (Action, error) {
	raw = strings.TrimSpace(raw)
	for _, a := range Actions() {
		if string(a) == raw {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q: %w", raw, ErrInvalid)
}

// ParseResource validates a raw resource name.
func ParseResource(raw string) (Resource, error) {
	raw = strings.TrimSpace(raw)
	for _, r := range Resources() {
		if string(r) == raw {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q: %w", raw, ErrInvalid)
}

// Profile is a named role. Profiles are soft-disabled, never deleted.
type Profile struct {
	ID     int64  `json:"id"`
	Name   string `json:"nome"`
	Active bool   `json:"active"`
}

// Edge means Child inherits Parent's permissions.
type Edge struct {
	ParentID int64 `json:"parentId"`
	ChildID  int64 `json:"childId"`
}

// ParentEdge is an edge joined with its parent profile.
type ParentEdge struct {
	ChildID      int64
	ParentID     int64
	ParentName   string
	ParentActive bool
}

// Permission is a stored (action, resource, granted) row scoped to a profile.
type Permission struct {
	ID        int64    `json:"id"`
	ProfileID int64    `json:"perfilId"`
	Action    Action   `json:"acao"`
	Resource  Resource `json:"recurso"`
	Granted   bool     `json:"permitido"`
	Active    bool     `json:"active"`
}

// Grant is one entry of an effective permission list.
type Grant struct {
	Action   Action   `json:"acao"`
	Resource Resource `json:"recurso"`
	Granted  bool     `json:"permitido"`
}

// Requirement is the (action, resource) pair a route demands.
type Requirement struct {
	Action   Action
	Resource Resource
}

// Require is shorthand for building a route requirement.
func Require(action Action, resource Resource) *Requirement {
	return &Requirement{Action: action, Resource: resource}
}

func (r Requirement) String() string {
	return string(r.Action) + ":" + string(r.Resource)
}

// Identity describes the authenticated caller.
type Identity struct {
	UserID  int64  `json:"id"`
	Email   string `json:"email"`
	Profile string `json:"perfil,omitempty"`
}

// Authenticated reports whether the identity carries a principal.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.Email) != ""
}

// NameSet is a set of profile names.
type NameSet map[string]struct{}

// Has reports membership.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Allows reports whether grants contain req with Granted=true.
func Allows(grants []Grant, req Requirement) bool {
	for _, g := range grants {
		if g.Action == req.Action && g.Resource == req.Resource {
			return g.Granted
		}
	}
	return false
}
