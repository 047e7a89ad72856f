package profiles

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

const (
	profileTable    = "Profile"
	permissionTable = "Permissao"
	edgeTable       = "PerfilHeranca"
)

// Admin is the profile administration contract served by rbac.Service.
type Admin interface {
	ListProfiles(ctx context.Context) ([]rbac.Profile, error)
	Profile(ctx context.Context, id int64) (rbac.Profile, error)
	CreateProfile(ctx context.Context, name string) (rbac.Profile, error)
	UpdateProfile(ctx context.Context, id int64, upd rbac.ProfileUpdate) (rbac.Profile, rbac.Profile, error)
	ProfilePermissions(ctx context.Context, profileID int64) ([]rbac.Permission, error)
	UpsertPermission(ctx context.Context, profileID int64, action, resource string, granted bool) (rbac.Permission, error)
	RemovePermission(ctx context.Context, profileID, permissionID int64) (rbac.Permission, error)
	Parents(ctx context.Context, childID int64) ([]rbac.Profile, error)
	AddParent(ctx context.Context, childID, parentID int64) error
	RemoveParent(ctx context.Context, childID, parentID int64) error
	EffectiveForProfile(ctx context.Context, profileID int64) ([]rbac.Grant, error)
}

var _ Admin = (*rbac.Service)(nil)

// Handler serves /api/perfis.
type Handler struct {
	admin Admin
	gate  *rbac.Gate
}

// NewHandler builds the handler.
func NewHandler(admin Admin, gate *rbac.Gate) *Handler {
	return &Handler{admin: admin, gate: gate}
}

// MountRoutes registers profile administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	perfil := func(a rbac.Action) *rbac.Requirement { return rbac.Require(a, rbac.ResourcePerfil) }
	permissao := func(a rbac.Action) *rbac.Requirement { return rbac.Require(a, rbac.ResourcePermissao) }

	r.Method(http.MethodGet, "/", h.gate.Wrap(perfil(rbac.ActionExibir), h.list))
	r.Method(http.MethodPost, "/", h.gate.Wrap(perfil(rbac.ActionCadastrar), h.create))
	r.Method(http.MethodGet, "/{id}", h.gate.Wrap(perfil(rbac.ActionExibir), h.get))
	r.Method(http.MethodPatch, "/{id}", h.gate.Wrap(perfil(rbac.ActionEditar), h.update))
	r.Method(http.MethodGet, "/{id}/efetivas", h.gate.Wrap(permissao(rbac.ActionExibir), h.effective))

	r.Method(http.MethodGet, "/{id}/permissoes", h.gate.Wrap(permissao(rbac.ActionExibir), h.permissions))
	r.Method(http.MethodPut, "/{id}/permissoes", h.gate.Wrap(permissao(rbac.ActionEditar), h.upsertPermission))
	r.Method(http.MethodDelete, "/{id}/permissoes/{permId}", h.gate.Wrap(permissao(rbac.ActionExcluir), h.removePermission))

	r.Method(http.MethodGet, "/{id}/pais", h.gate.Wrap(perfil(rbac.ActionExibir), h.parents))
	r.Method(http.MethodPost, "/{id}/pais", h.gate.Wrap(perfil(rbac.ActionEditar), h.addParent))
	r.Method(http.MethodDelete, "/{id}/pais/{parentId}", h.gate.Wrap(perfil(rbac.ActionEditar), h.removeParent))
}

func (h *Handler) list(ctx context.Context, _ rbac.Request) (rbac.Response, error) {
	profiles, err := h.admin.ListProfiles(ctx)
	if err != nil {
		return rbac.Response{}, err
	}
	if profiles == nil {
		profiles = []rbac.Profile{}
	}
	return rbac.Response{Body: profiles}, nil
}

type createRequest struct {
	Name string `json:"nome"`
}

func (h *Handler) create(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	var body createRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	p, err := h.admin.CreateProfile(ctx, body.Name)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Status: http.StatusCreated,
		Body:   p,
		Audit:  &rbac.AuditChange{Table: profileTable, Action: "CREATE", After: p},
	}, nil
}

func (h *Handler) get(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	p, err := h.admin.Profile(ctx, id)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: p}, nil
}

func (h *Handler) update(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body rbac.ProfileUpdate
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.admin.UpdateProfile(ctx, id, body)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Body:  after,
		Audit: &rbac.AuditChange{Table: profileTable, Action: "UPDATE", Before: before, After: after},
	}, nil
}

func (h *Handler) effective(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	grants, err := h.admin.EffectiveForProfile(ctx, id)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: grants}, nil
}

func (h *Handler) permissions(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	perms, err := h.admin.ProfilePermissions(ctx, id)
	if err != nil {
		return rbac.Response{}, err
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}
	return rbac.Response{Body: perms}, nil
}

type permissionRequest struct {
	Action   string `json:"acao"`
	Resource string `json:"recurso"`
	Granted  bool   `json:"permitido"`
}

func (h *Handler) upsertPermission(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body permissionRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	perm, err := h.admin.UpsertPermission(ctx, id, body.Action, body.Resource, body.Granted)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Body:  perm,
		Audit: &rbac.AuditChange{Table: permissionTable, Action: "UPSERT", After: perm},
	}, nil
}

func (h *Handler) removePermission(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	permID, err := req.ParamInt64("permId")
	if err != nil {
		return rbac.Response{}, err
	}
	perm, err := h.admin.RemovePermission(ctx, id, permID)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Body:  perm,
		Audit: &rbac.AuditChange{Table: permissionTable, Action: "DEACTIVATE", After: perm},
	}, nil
}

func (h *Handler) parents(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	parents, err := h.admin.Parents(ctx, id)
	if err != nil {
		return rbac.Response{}, err
	}
	if parents == nil {
		parents = []rbac.Profile{}
	}
	return rbac.Response{Body: parents}, nil
}

type parentRequest struct {
	ParentID int64 `json:"parentId"`
}

func (h *Handler) addParent(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body parentRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	if err := h.admin.AddParent(ctx, id, body.ParentID); err != nil {
		return rbac.Response{}, err
	}
	edge := rbac.Edge{ParentID: body.ParentID, ChildID: id}
	return rbac.Response{
		Status: http.StatusCreated,
		Body:   edge,
		Audit:  &rbac.AuditChange{Table: edgeTable, Action: "CREATE", After: edge},
	}, nil
}

func (h *Handler) removeParent(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	parentID, err := req.ParamInt64("parentId")
	if err != nil {
		return rbac.Response{}, err
	}
	if err := h.admin.RemoveParent(ctx, id, parentID); err != nil {
		return rbac.Response{}, err
	}
	edge := rbac.Edge{ParentID: parentID, ChildID: id}
	return rbac.Response{
		Status: http.StatusNoContent,
		Audit:  &rbac.AuditChange{Table: edgeTable, Action: "DELETE", Before: edge},
	}, nil
}
