package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/logistics-id/crud/ds/gormdb"
	"github.com/logistics-id/crud/transport/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type widget struct {
	gormdb.BaseEntity

	Name string `json:"name" validate:"required"`
	Qty  int    `json:"qty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
	Meta    *rest.Meta      `json:"meta"`
}

func newServer(t *testing.T, l *zap.Logger) (*rest.Server, *gormdb.BaseService[widget]) {
	t.Helper()

	db, err := gormdb.NewClient(&gormdb.Config{
		Driver:       gormdb.DriverSQLite,
		Datasource:   ":memory:",
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	svc, err := gormdb.NewBaseService[widget](db)
	require.NoError(t, err)

	srv := rest.NewServer(&rest.Config{Server: ":0"}, l, func(s *rest.Server) {
		(&rest.Resource[widget]{
			Prefix:          "/widgets",
			Service:         svc,
			NotFoundMessage: "Widget not found",
		}).Mount(s)
	})

	return srv, svc
}

func do(t *testing.T, srv *rest.Server, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return rec, env
}

func TestResourceCRUD(t *testing.T) {
	srv, _ := newServer(t, zap.NewNop())

	rec, env := do(t, srv, http.MethodPost, "/widgets", map[string]any{"name": "bolt", "qty": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "resource created", env.Message)

	var created widget
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	assert.NotEmpty(t, rec.Header().Get(rest.HeaderRequestID))

	rec, env = do(t, srv, http.MethodGet, "/widgets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, srv, http.MethodPatch, "/widgets/"+created.ID, map[string]any{"qty": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated widget
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 5, updated.Qty)

	rec, env = do(t, srv, http.MethodPatch, "/widgets/"+created.ID, map[string]any{"color": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, env = do(t, srv, http.MethodDelete, "/widgets/"+created.ID+"?soft=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var soft widget
	require.NoError(t, json.Unmarshal(env.Data, &soft))
	assert.True(t, soft.IsDeleted())

	rec, _ = do(t, srv, http.MethodDelete, "/widgets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, srv, http.MethodGet, "/widgets/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Widget not found", env.Message)
}

func TestResourceValidation(t *testing.T) {
	srv, _ := newServer(t, zap.NewNop())

	rec, env := do(t, srv, http.MethodPost, "/widgets", map[string]any{"qty": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation failed", env.Message)
	assert.JSONEq(t, `{"name":"failed on the 'required' rule"}`, string(env.Errors))

	rec, env = do(t, srv, http.MethodPost, "/widgets", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestResourceList(t *testing.T) {
	srv, svc := newServer(t, zap.NewNop())

	for i, n := range []string{"a", "b", "c", "d", "e"} {
		_, err := svc.Create(context.Background(), &widget{Name: n, Qty: i % 2})
		require.NoError(t, err)
	}

	rec, env := do(t, srv, http.MethodGet, "/widgets?sort=-name", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []widget
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 5)
	assert.Equal(t, "e", all[0].Name)
	assert.Nil(t, env.Meta)

	rec, env = do(t, srv, http.MethodGet, "/widgets?sort=name&limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []widget
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Name)
	assert.Equal(t, &rest.Meta{Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasNext: true, HasPrev: true}, env.Meta)

	rec, env = do(t, srv, http.MethodGet, "/widgets?qty=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var odd []widget
	require.NoError(t, json.Unmarshal(env.Data, &odd))
	assert.Len(t, odd, 2)

	rec, _ = do(t, srv, http.MethodGet, "/widgets?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/widgets?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/widgets?include=Maker", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResourceListFilterKeys(t *testing.T) {
	srv, svc := newServer(t, zap.NewNop())

	_, err := svc.Create(context.Background(), &widget{Name: "a", Qty: 1})
	require.NoError(t, err)

	for _, target := range []string{
		"/widgets?%24where=sleep(5000)%7C%7Ctrue",
		"/widgets?%24ne=x",
		"/widgets?owner.name=x",
		"/widgets?name%5B%24ne%5D=x",
	} {
		rec, env := do(t, srv, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.False(t, env.Success, target)
		assert.Contains(t, env.Message, string(rest.MsgInvalidField), target)
	}
}

func TestResourceListFilterValues(t *testing.T) {
	srv, svc := newServer(t, zap.NewNop())

	for i, n := range []string{"a", "b", "c"} {
		_, err := svc.Create(context.Background(), &widget{Name: n, Qty: i})
		require.NoError(t, err)
	}

	rec, env := do(t, srv, http.MethodGet, "/widgets?qty=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []widget
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Name)

	rec, env = do(t, srv, http.MethodGet, "/widgets?qty=0&qty=2&sort=name", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = nil
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)

	rec, _ = do(t, srv, http.MethodGet, "/widgets?qty=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/widgets?limit=4611686018427387904&page=5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := rest.NewServer(&rest.Config{Server: ":0"}, zap.NewNop(), nil)

	require.NotPanics(t, func() {
		assert.NoError(t, srv.Shutdown(context.Background()))
	})
}

func TestRequestIDReachesLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	srv, _ := newServer(t, zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(rest.HeaderRequestID, "req-9")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-9", rec.Header().Get(rest.HeaderRequestID))

	entries := logs.FilterMessage("REST/REQ").FilterField(zap.String("request_id", "req-9")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newServer(t, zap.NewNop())

	rec, env := do(t, srv, http.MethodGet, "/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "resource not found", env.Message)

	rec, _ = do(t, srv, http.MethodPut, "/widgets", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
