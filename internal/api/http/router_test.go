package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookshelf-labs/library-service/internal/api/http/handlers"
	"github.com/bookshelf-labs/library-service/internal/auth"
	"github.com/bookshelf-labs/library-service/internal/observability"
	"github.com/bookshelf-labs/library-service/internal/repository/repotest"
	"github.com/bookshelf-labs/library-service/internal/service"
	"github.com/bookshelf-labs/library-service/internal/storage"
)

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	logger := zap.NewNop()
	users := repotest.NewUsers()
	books := repotest.NewBooks()
	reviews := repotest.NewReviews(books)

	tokens, err := auth.NewTokenService([]byte("router-test-secret-router-test-00"), 15*time.Minute, time.Hour)
	require.NoError(t, err)
	files, err := storage.NewFileStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	authService := service.NewAuthService(users, tokens, bcrypt.MinCost, logger)
	require.NoError(t, authService.EnsureAdmin(context.Background(), "root@example.com", "admin-pass"))
	gatekeeper := auth.NewGatekeeper(auth.DefaultPolicy(), tokens, users, logger)
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:     handlers.NewHealthHandler("library-service", "test", nil, metrics),
		Docs:       handlers.NewDocsHandler(func() []fiber.Route { return app.GetRoutes(true) }, gatekeeper.Policy()),
		Auth:       handlers.NewAuthHandler(authService),
		Books:      handlers.NewBooksHandler(service.NewBookService(books, files, logger)),
		Reviews:    handlers.NewReviewsHandler(service.NewReviewService(reviews, books, users, logger)),
		Gatekeeper: gatekeeper,
	})
	return &apiClient{t: t, app: app}
}

func (a *apiClient) send(req *http.Request, token string) (int, []byte) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, body
}

func (a *apiClient) call(method, path, token string, payload any) (int, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	status, body := a.send(req, token)
	out := map[string]any{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &out)
	}
	return status, out
}

func (a *apiClient) tokens(path string, payload any) (access, refresh string) {
	a.t.Helper()
	status, body := a.call(http.MethodPost, path, "", payload)
	require.Less(a.t, status, 300, "%v", body)
	authData := body["data"].(map[string]any)["auth"].(map[string]any)
	return authData["access_token"].(string), authData["refresh_token"].(string)
}

func dataField(body map[string]any, key string) any {
	data, _ := body["data"].(map[string]any)
	return data[key]
}

func TestRoutes_AccessControl(t *testing.T) {
	api := newTestAPI(t)

	alice, aliceRefresh := api.tokens("/api/auth/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "s3cret-pass",
	})
	admin, _ := api.tokens("/api/auth/login", map[string]string{
		"email": "root@example.com", "password": "admin-pass",
	})

	status, _ := api.call(http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, http.StatusOK, status)

	newBook := map[string]any{"title": "Dune", "author": "Frank Herbert", "published_year": 1965}
	status, _ = api.call(http.MethodPost, "/api/books", "", newBook)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.call(http.MethodPost, "/api/books", alice, newBook)
	assert.Equal(t, http.StatusForbidden, status)
	status, body := api.call(http.MethodPost, "/api/books", admin, newBook)
	require.Equal(t, http.StatusCreated, status, "%v", body)
	bookID := dataField(body, "id").(string)

	status, body = api.call(http.MethodGet, "/api/books/"+bookID, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Dune", dataField(body, "title"))

	status, _ = api.call(http.MethodPost, "/api/books/"+bookID+"/reviews", "", map[string]any{"rating": 4})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.call(http.MethodPost, "/api/books/"+bookID+"/reviews", alice, map[string]any{"rating": 4})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = api.call(http.MethodPost, "/api/books/"+bookID+"/reviews", admin, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusCreated, status)

	_, body = api.call(http.MethodGet, "/api/books/"+bookID, "", nil)
	assert.Equal(t, 4.5, dataField(body, "average_rating"))
	assert.EqualValues(t, 2, dataField(body, "rating_count"))

	status, body = api.call(http.MethodGet, "/api/books/"+bookID+"/reviews", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, _ = api.call(http.MethodGet, "/api/books/"+bookID+"/download", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.call(http.MethodGet, "/api/books/"+bookID+"/download", alice, nil)
	assert.Equal(t, http.StatusNotFound, status, "no file uploaded yet")

	status, _ = api.call(http.MethodGet, "/api/auth/me", aliceRefresh, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "refresh tokens are not access tokens")
	status, body = api.call(http.MethodGet, "/api/auth/me", alice, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "USER", dataField(body, "role"))
	aliceID := dataField(body, "id").(string)

	status, _ = api.call(http.MethodGet, "/api/admin/metrics", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.call(http.MethodGet, "/api/admin/metrics", admin, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.call(http.MethodPut, "/api/admin/users/"+aliceID+"/role", alice, map[string]string{"role": "ADMIN"})
	assert.Equal(t, http.StatusForbidden, status)
	status, body = api.call(http.MethodPut, "/api/admin/users/"+aliceID+"/role", admin, map[string]string{"role": "ADMIN"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ADMIN", dataField(body, "role"))

	status, _ = api.call(http.MethodPost, "/api/books", alice, newBook)
	assert.Equal(t, http.StatusForbidden, status, "issued tokens keep their role claim")

	status, _ = api.call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": alice})
	assert.Equal(t, http.StatusUnauthorized, status)
	promoted, _ := api.tokens("/api/auth/refresh", map[string]string{"refresh_token": aliceRefresh})
	status, _ = api.call(http.MethodPost, "/api/books", promoted, newBook)
	assert.Equal(t, http.StatusCreated, status)
}

func TestRoutes_PDFUploadAndDownload(t *testing.T) {
	api := newTestAPI(t)
	admin, _ := api.tokens("/api/auth/login", map[string]string{"email": "root@example.com", "password": "admin-pass"})
	alice, _ := api.tokens("/api/auth/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "s3cret-pass",
	})

	_, body := api.call(http.MethodPost, "/api/books", admin, map[string]any{"title": "Dune", "author": "Frank Herbert"})
	bookID := dataField(body, "id").(string)

	upload := func(token string) int {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", "dune.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 dune"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/books/"+bookID+"/pdf", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		status, _ := api.send(req, token)
		return status
	}

	assert.Equal(t, http.StatusForbidden, upload(alice))
	assert.Equal(t, http.StatusOK, upload(admin))

	status, content := api.send(httptest.NewRequest(http.MethodGet, "/api/books/"+bookID+"/download", nil), alice)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "%PDF-1.4 dune", string(content))
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.call(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = api.call(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = api.call(http.MethodGet, "/v3/api-docs", "", nil)
	require.Equal(t, http.StatusOK, status)
	access := map[string]string{}
	for _, r := range body["routes"].([]any) {
		route := r.(map[string]any)
		access[route["method"].(string)+" "+route["path"].(string)] = route["access"].(string)
	}
	assert.Equal(t, "public", access["GET /api/books/:id"])
	assert.Equal(t, "protected", access["GET /api/books/:id/download"])
	assert.Equal(t, "protected", access["POST /api/books"])
	assert.Equal(t, "public", access["POST /api/auth/login"])

	status, body = api.call(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotNil(t, body["error"])
}
