package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/backlog-dim/backlog-dim/internal/auth"
	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
	"github.com/backlog-dim/backlog-dim/internal/shared"
	_ "github.com/backlog-dim/backlog-dim/testing"
)

type stubAccounts map[string]auth.Account

func (s stubAccounts) FindAccount(_ context.Context, email string) (auth.Account, error) {
	acct, ok := s[email]
	if !ok {
		return auth.Account{}, httpx.ErrNotFound
	}
	return acct, nil
}

type stubGrants []rbac.Grant

func (s stubGrants) EffectivePermissions(context.Context, rbac.Identity) ([]rbac.Grant, error) {
	return s, nil
}

type fixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	accounts := stubAccounts{
		"ana@dim.gov": {ID: 7, Email: "ana@dim.gov", PasswordHash: string(hash), Active: true},
		"rui@dim.gov": {ID: 8, Email: "rui@dim.gov", PasswordHash: string(hash), Active: false},
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)

	identities := rbac.IdentityFunc(func(r *http.Request) (rbac.Identity, error) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			return rbac.Identity{}, nil
		}
		return rbac.Identity{UserID: 7, Email: "ana@dim.gov", Profile: "Viewer"}, nil
	})
	gate := rbac.NewGate(identities, nil, nil, nil)
	grants := stubGrants{{Action: rbac.ActionExibir, Resource: rbac.ResourceProcesso, Granted: true}}
	handler := auth.NewHandler(nil, auth.NewService(accounts), sessions, gate, grants)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(r.Context(), sess)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, r.WithContext(ctx))
			if err := sessions.Commit(ctx, w, sess); err != nil {
				t.Fatalf("commit session: %v", err)
			}
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	router.Route("/auth", handler.MountRoutes)
	return fixture{router: router, sessions: sessions, mr: mr}
}

func (f fixture) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"wrong password": `{"email":"ana@dim.gov","password":"wrong-horse"}`,
		"unknown email":  `{"email":"zz@dim.gov","password":"correct-horse"}`,
		"inactive user":  `{"email":"rui@dim.gov","password":"correct-horse"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res := f.do(http.MethodPost, "/auth/login", body)
			if res.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", res.Code)
			}
			if len(res.Result().Cookies()) != 0 {
				t.Fatalf("no session should be issued")
			}
		})
	}
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"short"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["Email"] != "email" || body.Fields["Password"] != "min" {
		t.Fatalf("unexpected fields: %+v", body.Fields)
	}

	res = f.do(http.MethodPost, "/auth/login", `{"email":`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", res.Code)
	}
}

func TestLoginMeLogout(t *testing.T) {
	f := newFixture(t)

	res := f.do(http.MethodGet, "/auth/me", "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", res.Code)
	}

	res = f.do(http.MethodPost, "/auth/login", `{"email":"ana@dim.gov","password":"correct-horse"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	cookies := res.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "" {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	if !f.mr.Exists("session:" + cookies[0].Value) {
		t.Fatalf("session not stored in redis")
	}

	res = f.do(http.MethodGet, "/auth/me", "", cookies[0])
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from /me, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"email":"ana@dim.gov"`) || !strings.Contains(res.Body.String(), `"acao":"Exibir"`) {
		t.Fatalf("unexpected /me body: %s", res.Body.String())
	}

	res = f.do(http.MethodPost, "/auth/logout", "", cookies[0])
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if f.mr.Exists("session:" + cookies[0].Value) {
		t.Fatalf("session should be deleted on logout")
	}
	res = f.do(http.MethodGet, "/auth/me", "", cookies[0])
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", res.Code)
	}
}
