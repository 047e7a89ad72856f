package users

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

// Handler manages user endpoints.
type Handler struct {
	service *Service
	gate    *rbac.Gate
}

// NewHandler builds Handler instance.
func NewHandler(service *Service, gate *rbac.Gate) *Handler {
	return &Handler{service: service, gate: gate}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Method(http.MethodGet, "/", h.gate.Wrap(rbac.Require(rbac.ActionExibir, rbac.ResourceUsuario), h.list))
	r.Method(http.MethodGet, "/{id}", h.gate.Wrap(rbac.Require(rbac.ActionExibir, rbac.ResourceUsuario), h.get))
	r.Method(http.MethodPatch, "/{id}/perfil", h.gate.Wrap(rbac.Require(rbac.ActionAtribuir, rbac.ResourceUsuario), h.assignProfile))
}

func (h *Handler) list(ctx context.Context, _ rbac.Request) (rbac.Response, error) {
	users, err := h.service.ListUsers(ctx)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: users}, nil
}

func (h *Handler) get(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	u, err := h.service.Get(ctx, id)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: u}, nil
}

type assignProfileRequest struct {
	ProfileID *int64 `json:"perfilId"`
}

func (h *Handler) assignProfile(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body assignProfileRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.service.AssignProfile(ctx, id, body.ProfileID)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Body:  after,
		Audit: &rbac.AuditChange{Table: "User", Action: "UPDATE", Before: before, After: after},
	}, nil
}
