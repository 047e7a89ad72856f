package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlog-dim/backlog-dim/internal/audit"
	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
)

type stubAuthz struct {
	allow bool
	err   error
	calls int
}

func (s *stubAuthz) Authorize(context.Context, Identity, Requirement) (bool, error) {
	s.calls++
	return s.allow, s.err
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (r *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func fixedIdentity(id Identity) IdentityResolver {
	return IdentityFunc(func(*http.Request) (Identity, error) { return id, nil })
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestGateRejectsAnonymousWithoutCallingHandler(t *testing.T) {
	authz := &stubAuthz{allow: true}
	gate := NewGate(fixedIdentity(Identity{}), authz, nil, quietLogger())
	called := false
	h := gate.Wrap(Require(ActionExibir, ResourceProcesso), func(context.Context, Request) (Response, error) {
		called = true
		return Response{}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/processos", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
	assert.False(t, called)
	assert.Zero(t, authz.calls)
}

func TestGateRejectsMissingGrantWithoutCallingHandler(t *testing.T) {
	authz := &stubAuthz{allow: false}
	gate := NewGate(fixedIdentity(Identity{UserID: 1, Email: "ana@dim.gov", Profile: "Viewer"}), authz, nil, quietLogger())
	called := false
	h := gate.Wrap(Require(ActionExcluir, ResourceProcesso), func(context.Context, Request) (Response, error) {
		called = true
		return Response{}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/processos/1", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

func TestGateAuthorizationErrorIsInternal(t *testing.T) {
	authz := &stubAuthz{err: errors.New("db down")}
	gate := NewGate(fixedIdentity(Identity{Email: "ana@dim.gov"}), authz, nil, quietLogger())
	h := gate.Wrap(Require(ActionExibir, ResourceProcesso), func(context.Context, Request) (Response, error) {
		return Response{}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec))
}

func TestGateNilRequirementOnlyAuthenticates(t *testing.T) {
	authz := &stubAuthz{}
	gate := NewGate(fixedIdentity(Identity{Email: "ana@dim.gov"}), authz, nil, quietLogger())
	h := gate.Wrap(nil, func(ctx context.Context, req Request) (Response, error) {
		id, ok := IdentityFromContext(ctx)
		require.True(t, ok)
		return Response{Body: map[string]string{"email": id.Email}}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"ana@dim.gov"}`, rec.Body.String())
	assert.Zero(t, authz.calls)
}

func TestGateRecordsAuditAndPassesResponseThrough(t *testing.T) {
	recorder := &recordingAudit{}
	gate := NewGate(fixedIdentity(Identity{UserID: 7, Email: "ana@dim.gov"}), &stubAuthz{allow: true}, recorder, quietLogger())
	router := chi.NewRouter()
	router.Method(http.MethodPut, "/api/setores/{id}", gate.Wrap(Require(ActionEditar, ResourceSetor), func(_ context.Context, req Request) (Response, error) {
		id, err := req.ParamInt64("id")
		if err != nil {
			return Response{}, err
		}
		after := map[string]any{"id": id, "nome": "Ouvidoria"}
		return Response{
			Status: http.StatusOK,
			Body:   after,
			Audit:  &AuditChange{Table: "Setor", Action: "UPDATE", Before: map[string]any{"id": id, "nome": "Ouvid."}, After: after},
		}, nil
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/setores/3?src=ui", strings.NewReader(`{}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.Header.Set("User-Agent", "backlog-test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":3,"nome":"Ouvidoria"}`, rec.Body.String())
	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, "Setor", entry.Table)
	assert.Equal(t, "UPDATE", entry.Action)
	assert.Equal(t, "ana@dim.gov", entry.Email)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(7), *entry.UserID)
	assert.Equal(t, "/api/setores/3?src=ui", entry.Context)
	assert.Equal(t, "203.0.113.9", entry.IP)
	assert.Equal(t, "backlog-test", entry.UserAgent)
	assert.JSONEq(t, `{"id":3,"nome":"Ouvid."}`, string(entry.Before))
	assert.JSONEq(t, `{"id":3,"nome":"Ouvidoria"}`, string(entry.After))
}

func TestGateAuditUsesRealIPFallback(t *testing.T) {
	recorder := &recordingAudit{}
	gate := NewGate(fixedIdentity(Identity{Email: "ana@dim.gov"}), &stubAuthz{allow: true}, recorder, quietLogger())
	h := gate.Wrap(nil, func(context.Context, Request) (Response, error) {
		return Response{Status: http.StatusCreated, Audit: &AuditChange{Table: "Processo", Action: "CREATE", After: map[string]int{"id": 1}}}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/processos", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, "198.51.100.2", recorder.entries[0].IP)
	assert.Nil(t, recorder.entries[0].UserID)
	assert.Nil(t, recorder.entries[0].Before)
}

func TestGateAuditFailureDoesNotChangeResponse(t *testing.T) {
	recorder := &recordingAudit{err: errors.New("audit table locked")}
	gate := NewGate(fixedIdentity(Identity{Email: "ana@dim.gov"}), &stubAuthz{allow: true}, recorder, quietLogger())
	h := gate.Wrap(Require(ActionCadastrar, ResourceSetor), func(context.Context, Request) (Response, error) {
		return Response{Status: http.StatusCreated, Body: map[string]int{"id": 9}, Audit: &AuditChange{Table: "Setor", Action: "CREATE"}}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/setores", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":9}`, rec.Body.String())
}

func TestGateMapsHandlerErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrCycle, http.StatusBadRequest},
		{httpx.ErrValidation, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		gate := NewGate(fixedIdentity(Identity{Email: "ana@dim.gov"}), &stubAuthz{allow: true}, nil, quietLogger())
		h := gate.Wrap(nil, func(context.Context, Request) (Response, error) { return Response{}, tc.err })
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestGateWritesRawBodies(t *testing.T) {
	gate := NewGate(fixedIdentity(Identity{Email: "ana@dim.gov"}), &stubAuthz{allow: true}, nil, quietLogger())
	h := gate.Wrap(nil, func(context.Context, Request) (Response, error) {
		header := http.Header{}
		header.Set("Content-Type", "text/csv")
		return Response{Raw: []byte("id\n1\n"), Header: header}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export.csv", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "id\n1\n", rec.Body.String())
}

func TestGateWithServiceEndToEnd(t *testing.T) {
	store := newFakeStore()
	viewer := store.profile("Viewer", true)
	store.grant(viewer, ActionExibir, ResourceProcesso, true)
	svc := NewService(store, WithCache(NewMemoryCache(0)))
	gate := NewGate(fixedIdentity(Identity{Email: "v@dim.gov", Profile: "Viewer"}), svc, nil, quietLogger())
	ok := func(context.Context, Request) (Response, error) { return Response{Body: []int{}}, nil }

	rec := httptest.NewRecorder()
	gate.Wrap(Require(ActionExibir, ResourceProcesso), ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	gate.Wrap(Require(ActionCadastrar, ResourceProcesso), ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
