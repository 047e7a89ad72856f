package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Error(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		}),
	)
	r.Method(http.MethodGet, "/", h.gate.Wrap(rbac.Require(rbac.ActionExibir, rbac.ResourceAuditLog), h.timeline))
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Method(http.MethodGet, "/export.csv", h.gate.Wrap(rbac.Require(rbac.ActionExportar, rbac.ResourceAuditLog), h.export))
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if ip := httpx.ClientIP(r); ip != "" {
		return "ip:" + ip, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
