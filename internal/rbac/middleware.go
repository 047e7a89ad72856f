package rbac

import (
	"log/slog"
	"net/http"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

// Middleware wires RBAC checks into plain chi routes.
type Middleware struct {
	Identities IdentityResolver
	Authz      Authorizer
	Logger     *slog.Logger
}

// RequireAny ensures the caller holds at least one of reqs.
func (m Middleware) RequireAny(reqs ...Requirement) func(http.Handler) http.Handler {
	return m.require(reqs, func(held, total int) bool { return total == 0 || held > 0 })
}

// RequireAll ensures the caller holds every one of reqs.
func (m Middleware) RequireAll(reqs ...Requirement) func(http.Handler) http.Handler {
	return m.require(reqs, func(held, total int) bool { return held == total })
}

func (m Middleware) require(reqs []Requirement, pass func(held, total int) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := m.Identities.Identify(r)
			if err != nil {
				m.fail(w, err)
				return
			}
			if !id.Authenticated() {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			held := 0
			for _, req := range reqs {
				ok, err := m.Authz.Authorize(r.Context(), id, req)
				if err != nil {
					m.fail(w, err)
					return
				}
				if ok {
					held++
				}
			}
			if !pass(held, len(reqs)) {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func (m Middleware) fail(w http.ResponseWriter, err error) {
	if m.Logger != nil {
		m.Logger.Error("rbac middleware", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
