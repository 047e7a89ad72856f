package processos

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

const auditTable = "Processo"

// Handler exposes processos over HTTP.
type Handler struct {
	service *Service
	gate    *rbac.Gate
}

// NewHandler builds the handler.
func NewHandler(service *Service, gate *rbac.Gate) *Handler {
	return &Handler{service: service, gate: gate}
}

// MountRoutes registers processo routes.
func (h *Handler) MountRoutes(r chi.Router) {
	res := rbac.ResourceProcesso
	r.Method(http.MethodGet, "/", h.gate.Wrap(rbac.Require(rbac.ActionExibir, res), h.list))
	r.Method(http.MethodGet, "/export.csv", h.gate.Wrap(rbac.Require(rbac.ActionExportar, res), h.export))
	r.Method(http.MethodPost, "/", h.gate.Wrap(rbac.Require(rbac.ActionCadastrar, res), h.create))
	r.Method(http.MethodGet, "/{id}", h.gate.Wrap(rbac.Require(rbac.ActionExibir, res), h.get))
	r.Method(http.MethodPut, "/{id}", h.gate.Wrap(rbac.Require(rbac.ActionEditar, res), h.update))
	r.Method(http.MethodDelete, "/{id}", h.gate.Wrap(rbac.Require(rbac.ActionExcluir, res), h.delete))
	r.Method(http.MethodPatch, "/{id}/situacao", h.gate.Wrap(rbac.Require(rbac.ActionEncaminhar, res), h.forward))
	r.Method(http.MethodPatch, "/{id}/responsavel", h.gate.Wrap(rbac.Require(rbac.ActionAtribuir, res), h.assign))
}

func parseFilter(req rbac.Request) (Filter, error) {
	var f Filter
	for name, dst := range map[string]*int64{"situacao": &f.SituacaoID, "setor": &f.SetorID, "responsavel": &f.ResponsavelID} {
		if raw := strings.TrimSpace(req.Query(name)); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v <= 0 {
				return Filter{}, httpx.ErrValidation
			}
			*dst = v
		}
	}
	for name, dst := range map[string]*int{"page": &f.Page, "page_size": &f.PageSize} {
		if raw := strings.TrimSpace(req.Query(name)); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				return Filter{}, httpx.ErrValidation
			}
			*dst = v
		}
	}
	f.Search = strings.TrimSpace(req.Query("q"))
	f.IncludeInactive, _ = strconv.ParseBool(req.Query("todos"))
	return f, nil
}

func (h *Handler) list(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	f, err := parseFilter(req)
	if err != nil {
		return rbac.Response{}, err
	}
	page, err := h.service.List(ctx, f)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: page}, nil
}

func (h *Handler) export(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	f, err := parseFilter(req)
	if err != nil {
		return rbac.Response{}, err
	}
	data, err := h.service.Export(ctx, f)
	if err != nil {
		return rbac.Response{}, err
	}
	header := http.Header{}
	header.Set("Content-Type", "text/csv; charset=utf-8")
	header.Set("Content-Disposition", `attachment; filename="processos.csv"`)
	return rbac.Response{Raw: data, Header: header}, nil
}

func (h *Handler) get(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	p, err := h.service.Get(ctx, id)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{Body: p}, nil
}

func (h *Handler) create(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	var in Input
	if err := req.Decode(&in); err != nil {
		return rbac.Response{}, err
	}
	p, err := h.service.Create(ctx, in)
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Status: http.StatusCreated,
		Body:   p,
		Audit:  &rbac.AuditChange{Table: auditTable, Action: "CREATE", After: p},
	}, nil
}

func (h *Handler) update(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var in Input
	if err := req.Decode(&in); err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.service.Update(ctx, id, in)
	return changed("UPDATE", before, after, err)
}

func (h *Handler) delete(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.service.Delete(ctx, id)
	return changed("DELETE", before, after, err)
}

type forwardRequest struct {
	SituacaoID int64 `json:"situacaoId"`
}

func (h *Handler) forward(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body forwardRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.service.Forward(ctx, id, body.SituacaoID)
	return changed("FORWARD", before, after, err)
}

type assignRequest struct {
	ResponsavelID *int64 `json:"responsavelId"`
}

func (h *Handler) assign(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	id, err := req.ParamInt64("id")
	if err != nil {
		return rbac.Response{}, err
	}
	var body assignRequest
	if err := req.Decode(&body); err != nil {
		return rbac.Response{}, err
	}
	before, after, err := h.service.Assign(ctx, id, body.ResponsavelID)
	return changed("ASSIGN", before, after, err)
}

func changed(action string, before, after Processo, err error) (rbac.Response, error) {
	if err != nil {
		return rbac.Response{}, err
	}
	return rbac.Response{
		Body:  after,
		Audit: &rbac.AuditChange{Table: auditTable, Action: action, Before: before, After: after},
	}, nil
}
