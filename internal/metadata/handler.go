package metadata

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

// Handler exposes one catalog kind over HTTP.
type Handler struct {
	kind    Kind
	service *Service
	gate    *rbac.Gate
}

// NewHandler builds a handler for kind.
func NewHandler(kind Kind, service *Service, gate *rbac.Gate) *Handler {
	return &Handler{kind: kind, service: service, gate: gate}
}

// Kind reports the catalog served by h.
func (h *Handler) Kind() Kind {
	return h.kind
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	res := h.kind.Resource
	r.Method(http.MethodGet, "/", h.gate.Wrap(rbac.Require(rbac.ActionExibir, res), h.list))
	r.Method(http.MethodPost, "/", h.gate.Wrap(rbac.Require(rbac.ActionCadastrar, res), h.create))
	r.Method(http.MethodGet, "/{id}", h.gate.Wrap(rbac.Require(rbac.ActionExibir, res), h.get))
	r.Method(http.MethodPut, "/{id}", h.gate.Wrap(rbac.Require(rbac.ActionEditar, res), h.rename))
	r.Method(http.MethodPost, "/{id}/desativar", h.gate.Wrap(rbac.Require(rbac.ActionDesativar, res), h.toggle(false)))
	r.Method(http.MethodPost, "/{id}/reativar", h.gate.Wrap(rbac.Require(rbac.ActionReativar, res), h.toggle(true)))
}

type nameRequest struct {
	Name string `json:"nome"`
}

func (h *Handler) list(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	all, _ := strconv.ParseBool(req.Query("todos"))
	items, err := h.service.List(ctx, h.kind, all)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: items}, nil
}

func (h *Handler) get(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	it, err := h.service.Get(ctx, h.kind, id)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: it}, nil
}

func (h *Handler) create(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	var body nameRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	it, err := h.service.Create(ctx, h.kind, body.Name)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Status: http.StatusCreated,
		Body:   it,
		Audit:  &rbac.AuditChange{Table: h.kind.Table, Action: "CREATE", After: it},
	}, nil
}

func (h *Handler) rename(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body nameRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.service.Rename(ctx, h.kind, id, body.Name)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Body:  after,
		Audit: &rbac.AuditChange{Table: h.kind.Table, Action: "UPDATE", Before: before, After: after},
	}, nil
}

func (h *Handler) toggle(active bool) rbac.HandlerFunc {
	action := "DEACTIVATE"
	if active {
		action = "REACTIVATE"
	}
	return func(ctx context.Context, req rbac.Request) (rbac.Response, error) {
		id, err := req.ParamInt64("id")
		if err != nil {
			return rbac.Response{}, err
		}
		before, after, err := h.service.SetActive(ctx, h.kind, id, active)
		if err != nil {
			return rbac.Response{}, err
		}
		return rbac.Response{
			Body:  after,
			Audit: &rbac.AuditChange{Table: h.kind.Table, Action: action, Before: before, After: after},
		}, nil
	}
}
