package users

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/backlog-dim/backlog-dim/internal/rbac"
	"github.com/backlog-dim/backlog-dim/internal/shared"
)

// Finder loads users by id.
type Finder interface {
	FindByID(ctx context.Context, id int64) (User, error)
}

// SessionIdentity resolves the caller from the session user id.
type SessionIdentity struct {
	Users Finder
}

// Identify implements rbac.IdentityResolver. Missing, unknown or inactive users
// resolve to the anonymous identity.
func (s SessionIdentity) Identify(r *http.Request) (rbac.Identity, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return rbac.Identity{}, nil
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return rbac.Identity{}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return rbac.Identity{}, nil
	}
	u, err := s.Users.FindByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return rbac.Identity{}, nil
	}
	if err != nil {
		return rbac.Identity{}, err
	}
	if !u.Active {
		return rbac.Identity{}, nil
	}
	return rbac.Identity{UserID: u.ID, Email: u.Email, Profile: u.Profile}, nil
}
