package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/backlog-dim/backlog-dim/internal/audit"
	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

// IdentityResolver extracts the caller identity from a request. An identity
// with no email means the caller is anonymous.
type IdentityResolver interface {
	Identify(r *http.Request) (Identity, error)
}

// IdentityFunc adapts a function to IdentityResolver.
type IdentityFunc func(r *http.Request) (Identity, error)

// Identify implements IdentityResolver.
func (f IdentityFunc) Identify(r *http.Request) (Identity, error) { return f(r) }

// Authorizer answers whether an identity holds a requirement.
type Authorizer interface {
	Authorize(ctx context.Context, id Identity, req Requirement) (bool, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Request is what a gated handler receives.
type Request struct {
	HTTP     *http.Request
	Identity Identity
	Params   map[string]string
}

// Context returns the request context.
func (r Request) Context() context.Context { return r.HTTP.Context() }

// Param returns a URL parameter.
func (r Request) Param(name string) string { return r.Params[name] }

// ParamInt64 parses a numeric URL parameter.
func (r Request) ParamInt64(name string) (int64, error) {
	id, err := strconv.ParseInt(r.Params[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrNotFound
	}
	return id, nil
}

// Query returns a query string value.
func (r Request) Query(name string) string { return r.HTTP.URL.Query().Get(name) }

// Decode reads the JSON body into target.
func (r Request) Decode(target any) error { return httpx.DecodeJSON(r.HTTP, target) }

// AuditChange describes the row change a handler wants recorded.
type AuditChange struct {
	Table  string
	Action string
	Before any
	After  any
}

// Response is what a gated handler returns. Raw, when set, is written verbatim
// instead of the JSON encoding of Body.
type Response struct {
	Status int
	Body   any
	Raw    []byte
	Header http.Header
	Audit  *AuditChange
}

// HandlerFunc is a gated handler.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Interceptor runs before the handler and either enriches the call or stops it.
type Interceptor func(ctx context.Context, call Request) (Request, error)

// Gate wraps handlers with authentication, authorization and auditing.
type Gate struct {
	identities IdentityResolver
	authz      Authorizer
	recorder   AuditRecorder
	logger     *slog.Logger
}

// NewGate constructs a gate. recorder may be nil to disable auditing.
func NewGate(identities IdentityResolver, authz Authorizer, recorder AuditRecorder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{identities: identities, authz: authz, recorder: recorder, logger: logger}
}

// Wrap produces an http.Handler for h. A nil req only requires authentication.
func (g *Gate) Wrap(req *Requirement, h HandlerFunc) http.Handler {
	chain := []Interceptor{g.authenticate, g.authorize(req)}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Request{HTTP: r, Params: urlParams(r)}
		var err error
		for _, step := range chain {
			call, err = step(r.Context(), call)
			if err != nil {
				g.fail(w, r, err)
				return
			}
		}
		call.HTTP = r.WithContext(ContextWithIdentity(r.Context(), call.Identity))

		resp, err := h(call.HTTP.Context(), call)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		if resp.Audit != nil {
			g.record(call, resp.Audit)
		}
		g.write(w, resp)
	})
}

func (g *Gate) authenticate(_ context.Context, call Request) (Request, error) {
	id, err := g.identities.Identify(call.HTTP)
	if err != nil {
		return call, err
	}
	if !id.Authenticated() {
		return call, httpx.ErrUnauthorized
	}
	call.Identity = id
	return call, nil
}

func (g *Gate) authorize(req *Requirement) Interceptor {
	return func(ctx context.Context, call Request) (Request, error) {
		if req == nil {
			return call, nil
		}
		ok, err := g.authz.Authorize(ctx, call.Identity, *req)
		if err != nil {
			return call, err
		}
		if !ok {
			return call, httpx.ErrForbidden
		}
		return call, nil
	}
}

func (g *Gate) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		g.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (g *Gate) record(call Request, change *AuditChange) {
	if g.recorder == nil {
		return
	}
	if err := g.recordEntry(call, change); err != nil {
		g.logger.Warn("audit record",
			slog.String("table", change.Table),
			slog.String("action", change.Action),
			slog.Any("error", err))
	}
}

func (g *Gate) recordEntry(call Request, change *AuditChange) error {
	before, err := audit.Snapshot(change.Before)
	if err != nil {
		return err
	}
	after, err := audit.Snapshot(change.After)
	if err != nil {
		return err
	}
	entry := audit.Entry{
		Table:     change.Table,
		Action:    change.Action,
		Email:     call.Identity.Email,
		Context:   call.HTTP.URL.RequestURI(),
		Before:    before,
		After:     after,
		IP:        httpx.ClientIP(call.HTTP),
		UserAgent: call.HTTP.UserAgent(),
		CreatedAt: time.Now().UTC(),
	}
	if call.Identity.UserID != 0 {
		uid := call.Identity.UserID
		entry.UserID = &uid
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(call.HTTP.Context()), 5*time.Second)
	defer cancel()
	return g.recorder.Record(ctx, entry)
}

func (g *Gate) write(w http.ResponseWriter, resp Response) {
	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Raw != nil {
		w.WriteHeader(status)
		_, _ = w.Write(resp.Raw)
		return
	}
	httpx.JSON(w, status, resp.Body)
}

func urlParams(r *http.Request) map[string]string {
	params := map[string]string{}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return params
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}
