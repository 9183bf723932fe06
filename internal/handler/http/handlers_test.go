package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/userapi/internal/domain"
	"example.com/userapi/internal/storage/memory"
	"example.com/userapi/internal/usecase"
)

func newTestHandler(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(usecase.NewUserService(store, zerolog.Nop()), zerolog.Nop()), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) domain.User {
	t.Helper()
	var u domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestUsersScenario(t *testing.T) {
	h, store := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/users", `{"name":"Ann","email":"ann@x.com","age":30}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.User{ID: 1, Name: "Ann", Email: "ann@x.com", Age: 30}, decodeUser(t, rec))

	rec = do(t, h, http.MethodPost, "/users", `{"name":"Bo","email":"bo@x.com","age":25}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(2), decodeUser(t, rec).ID)

	rec = do(t, h, http.MethodPost, "/users", `{"name":"Cy","email":"ann@x.com","age":20}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", errorMessage(t, rec))
	assert.Len(t, store.Snapshot(), 2)

	rec = do(t, h, http.MethodPatch, "/users/1", `{"age":31}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.User{ID: 1, Name: "Ann", Email: "ann@x.com", Age: 31}, decodeUser(t, rec))

	rec = do(t, h, http.MethodDelete, "/users/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted struct {
		Message string      `json:"message"`
		User    domain.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.Equal(t, "User deleted successfully", deleted.Message)
	assert.Equal(t, "Bo", deleted.User.Name)

	rec = do(t, h, http.MethodGet, "/users/2", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorMessage(t, rec))

	rec = do(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)
}

func TestListUsers_EmptyArray(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUsers_TrailingSlash(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/users/", `{"name":"Ann","email":"ann@x.com","age":30}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decodeUser(t, rec).ID)

	rec = do(t, h, http.MethodGet, "/users/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	rec = do(t, h, http.MethodGet, "/users/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateUser_IgnoresIncomingID(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/users", `{"user_id":77,"name":"Ann","email":"ann@x.com","age":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(1), decodeUser(t, rec).ID)
}

func TestCreateUser_Validation(t *testing.T) {
	h, store := newTestHandler(t)

	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"bad email", `{"name":"Ann","email":"nope","age":30}`, http.StatusUnprocessableEntity, "email must be a valid email address"},
		{"missing age", `{"name":"Ann","email":"ann@x.com"}`, http.StatusUnprocessableEntity, "age is required"},
		{"missing name", `{"email":"ann@x.com","age":3}`, http.StatusUnprocessableEntity, "name is required"},
		{"negative age", `{"name":"Ann","email":"ann@x.com","age":-1}`, http.StatusUnprocessableEntity, "age must be at least 0"},
		{"unknown field", `{"name":"Ann","email":"ann@x.com","age":3,"role":"x"}`, http.StatusBadRequest, "invalid json"},
		{"trailing data", `{"name":"Ann","email":"ann@x.com","age":3}{}`, http.StatusBadRequest, "invalid json"},
		{"not json", `name=Ann`, http.StatusBadRequest, "invalid json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/users", tc.body)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Equal(t, tc.msg, errorMessage(t, rec))
		})
	}
	assert.Empty(t, store.Snapshot())
}

func TestCreateUser_ZeroAgeAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/users", `{"name":"Baby","email":"baby@x.com","age":0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decodeUser(t, rec).Age)
}

func TestReplaceUser(t *testing.T) {
	h, _ := newTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/users", `{"name":"Ann","email":"ann@x.com","age":30}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/users", `{"name":"Bo","email":"bo@x.com","age":25}`).Code)

	rec := do(t, h, http.MethodPut, "/users/1", `{"name":"Ann","email":"ann@x.com","age":40}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, decodeUser(t, rec).Age)

	rec = do(t, h, http.MethodPut, "/users/1", `{"name":"Bo","email":"ann@x.com","age":40}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User name already exists", errorMessage(t, rec))

	rec = do(t, h, http.MethodPut, "/users/1", `{"name":"Ann","age":40}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "full update requires every field")

	rec = do(t, h, http.MethodPut, "/users/9", `{"name":"Zed","email":"z@x.com","age":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchUser(t *testing.T) {
	h, _ := newTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/users", `{"name":"Ann","email":"ann@x.com","age":30}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/users", `{"name":"Bo","email":"bo@x.com","age":25}`).Code)

	rec := do(t, h, http.MethodPatch, "/users/1", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.User{ID: 1, Name: "Ann", Email: "ann@x.com", Age: 30}, decodeUser(t, rec))

	rec = do(t, h, http.MethodPatch, "/users/1", `{"email":"bo@x.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", errorMessage(t, rec))

	rec = do(t, h, http.MethodPatch, "/users/1", `{"email":"bad"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPatch, "/users/1", `{"name":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPatch, "/users/1", `{"name":"Annie","age":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.User{ID: 1, Name: "Annie", Email: "ann@x.com", Age: 0}, decodeUser(t, rec))

	rec = do(t, h, http.MethodPatch, "/users/9", `{"age":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidID(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := do(t, h, method, "/users/abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid id", errorMessage(t, rec))
	}
}

func TestUtilityRoutes(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Message":"Hello World! This is the users API"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/hello/ann", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Welcome":"ann"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/search?q=go", "")
	assert.JSONEq(t, `{"search results":"go"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/search", "")
	assert.JSONEq(t, `{"search results":null}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.JSONEq(t, `{"ok":"true"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

type failingService struct {
	UserService
}

func (failingService) List(context.Context) ([]domain.User, error) {
	return nil, errors.New("disk on fire")
}

func (failingService) Get(context.Context, int64) (domain.User, error) {
	panic("unexpected")
}

func TestInternalErrors(t *testing.T) {
	var logs bytes.Buffer
	h := New(failingService{}, zerolog.New(&logs))

	rec := do(t, h, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "disk on fire")

	rec = do(t, h, http.MethodGet, "/users/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "handler panicked")
}
