package projects

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kis-labs/webbuilder/internal/gate"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
	"github.com/kis-labs/webbuilder/internal/token"
)

type nopHandle struct{}

func (nopHandle) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (nopHandle) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (nopHandle) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (nopHandle) Begin(context.Context) (pgx.Tx, error)                   { return nil, nil }
func (nopHandle) Ping(context.Context) error                              { return nil }
func (nopHandle) Close()                                                  {}

type staticAcquirer struct{}

func (staticAcquirer) Acquire(context.Context) (db.Handle, error) { return nopHandle{}, nil }

type people map[int64]*principal.Principal

func (p people) FindByID(_ context.Context, id int64) (*principal.Principal, error) {
	if v, ok := p[id]; ok {
		return v, nil
	}
	return nil, shared.ErrNotFound
}

type apiFixture struct {
	*fixture
	codec  *token.Codec
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := newFixture(t, 0)
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("b", 32),
		AccessTTL:     time.Hour,
		RefreshTTL:    2 * time.Hour,
	})
	require.NoError(t, err)
	known := people{1: f.owner.Principal, 2: f.other.Principal}
	g := gate.New(codec, staticAcquirer{}, nil, gate.WithFinderFactory(func(db.Conn) gate.PrincipalFinder { return known }))
	r := chi.NewRouter()
	r.Route("/api/projects", NewHandler(nil, f.service, g).MountRoutes)
	return &apiFixture{fixture: f, codec: codec, router: r}
}

func (a *apiFixture) do(t *testing.T, method, path string, as int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if as > 0 {
		tok, err := a.codec.Issue(as, token.KindAccess)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}
	res := httptest.NewRecorder()
	a.router.ServeHTTP(res, req)
	return res
}

func TestCreateProjectEndpoint(t *testing.T) {
	a := newAPIFixture(t)

	res := a.do(t, http.MethodPost, "/api/projects", 1, `{"name":"Landing","alias":"landing"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.JSONEq(t, `{"message":"Project created successfully","projectId":1,"alias":"landing"}`, res.Body.String())

	res = a.do(t, http.MethodPost, "/api/projects", 2, `{"name":"Landing","alias":"landing"}`)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Contains(t, res.Body.String(), "Alias already exists")

	res = a.do(t, http.MethodPost, "/api/projects", 1, `{"alias":"x"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = a.do(t, http.MethodPost, "/api/projects", 0, `{"name":"Landing"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestListProjectsEndpoint(t *testing.T) {
	a := newAPIFixture(t)
	for _, body := range []string{`{"name":"Alpha"}`, `{"name":"Beta"}`, `{"name":"Alphabet"}`} {
		require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/projects", 1, body).Code)
	}

	res := a.do(t, http.MethodGet, "/api/projects?name=alpha&limit=1&page=2", 1, "")
	require.Equal(t, http.StatusOK, res.Code)
	var page Page
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Projects, 1)
	assert.Equal(t, "Alphabet", page.Projects[0].Name)
}

func TestProjectByAliasEndpoint(t *testing.T) {
	a := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/projects", 1, `{"name":"Blog","alias":"blog"}`).Code)

	res := a.do(t, http.MethodGet, "/api/projects/alias/blog", 1, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"alias":"blog"`)

	res = a.do(t, http.MethodGet, "/api/projects/alias/blog", 2, "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.JSONEq(t, `{"error":"Project not found"}`, res.Body.String())
}

func TestDuplicateProjectEndpoint(t *testing.T) {
	a := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/projects", 1, `{"name":"Blog","alias":"blog"}`).Code)

	res := a.do(t, http.MethodPost, "/api/projects/1/duplicate", 1, "")
	require.Equal(t, http.StatusCreated, res.Code)
	assert.JSONEq(t, `{"message":"Project duplicated successfully","projectId":2,"alias":"blog-copy-1"}`, res.Body.String())

	res = a.do(t, http.MethodPost, "/api/projects/abc/duplicate", 1, "")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = a.do(t, http.MethodPost, "/api/projects/1/duplicate", 2, "")
	assert.Equal(t, http.StatusNotFound, res.Code)

	a.repo.stealFor = DefaultDuplicateAttempts
	res = a.do(t, http.MethodPost, "/api/projects/1/duplicate", 1, "")
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.NotEmpty(t, res.Header().Get("Retry-After"))
}
