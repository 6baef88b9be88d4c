package rest

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/internal/middleware"
	"github.com/dfryer1193/storefront/shared/auth"
	"github.com/dfryer1193/storefront/shared/db/sqlite"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/persistence"
	"github.com/dfryer1193/storefront/shop/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

type testServer struct {
	router    *gin.Engine
	uploadDir string
	token     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: filepath.Join(dir, "api.db")})
	require.NoError(t, database.Connect())
	t.Cleanup(func() { _ = database.Close() })

	uploadDir := filepath.Join(dir, "uploads")
	blobs, err := storage.NewLocalStore(uploadDir)
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	products := application.NewProductService(persistence.NewProductRepository(database.DB()), blobs)
	t.Cleanup(func() { _ = products.Close() })

	router := gin.New()
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	NewApi(router, Deps{
		Products: products,
		Auth:     application.NewAuthService(persistence.NewUserRepository(database.DB()), tokens),
		Blobs:    blobs,
		DB:       database,
	})

	return &testServer{router: router, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	body := `{"name":"Ada","email":"ada@example.com","password":"secret1"}`
	w := s.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.Response[api.AuthResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	s.token = resp.Data.Token
}

func (s *testServer) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp api.Response[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorBody {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

var mugFields = map[string]string{"name": "Mug", "shortDescription": "Ceramic mug", "price": "7.99"}

func TestInfoAndHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "API is working")

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeNotFound, decodeError(t, w).Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", decode[api.User](t, w).Email)

	s.token = ""
	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong-pass"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, api.CodeUnauthorized, decodeError(t, w).Code)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"secret1"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"Ada","email":"ADA@example.com","password":"secret1"}`)))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProduct_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, multipartRequest(t, http.MethodPost, "/api/products", mugFields, "mug.png", pngBytes))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, s.files(t), "no file may be written for an unauthenticated request")
}

func TestProductLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(t, multipartRequest(t, http.MethodPost, "/api/products", mugFields, "mug.png", pngBytes))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[api.Product](t, w)
	assert.Equal(t, 7.99, created.Price)
	assert.True(t, strings.HasPrefix(created.Image, storage.RefPrefix))
	assert.True(t, strings.HasSuffix(created.Image, ".png"))
	require.Len(t, s.files(t), 1)

	w = s.do(t, httptest.NewRequest(http.MethodGet, created.Image, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/products?search=MUG&sortBy=price&sortOrder=asc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.ProductList](t, w)
	require.Len(t, list.Products, 1)
	assert.Equal(t, api.Pagination{Page: 1, Limit: 100, Total: 1, Pages: 1}, list.Pagination)

	w = s.do(t, multipartRequest(t, http.MethodPut, "/api/products/"+created.ID,
		map[string]string{"price": "8.99"}, "", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[api.Product](t, w)
	assert.Equal(t, 8.99, updated.Price)
	assert.Equal(t, "Mug", updated.Name)
	assert.Equal(t, created.Image, updated.Image)

	gif := append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 32)...)
	w = s.do(t, multipartRequest(t, http.MethodPut, "/api/products/"+created.ID, nil, "mug.gif", gif))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replaced := decode[api.Product](t, w)
	assert.NotEqual(t, created.Image, replaced.Image)
	files := s.files(t)
	require.Len(t, files, 1, "the replaced image is removed")
	assert.True(t, strings.HasSuffix(files[0], ".gif"))

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/products/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product deleted successfully", decode[api.Message](t, w).Message)
	assert.Empty(t, s.files(t))

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/products/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.CodeNotFound, decodeError(t, w).Code)
}

func TestCreateProduct_ValidationRemovesUpload(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(t, multipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Mug", "price": "7.99"}, "mug.png", pngBytes))

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, api.CodeValidation, body.Code)
	assert.Contains(t, body.Fields, "shortDescription")
	assert.Empty(t, s.files(t))
}

func TestUploadImage_RejectsBeforeHandler(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		file     []byte
	}{
		{name: "text file", filename: "notes.png", file: []byte("just some text, not an image")},
		{name: "file over the size limit", filename: "big.png", file: append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, MaxUploadBytes)...)},
		{name: "body over the request cap", filename: "huge.png", file: append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 7<<20)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.login(t)

			w := s.do(t, multipartRequest(t, http.MethodPost, "/api/products", mugFields, tt.filename, tt.file))

			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, api.CodeValidation, body.Code)
			assert.Contains(t, body.Fields, "image")
			assert.Empty(t, s.files(t))

			w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/products", nil))
			assert.Empty(t, decode[api.ProductList](t, w).Products)
		})
	}
}

func TestListProducts_InvalidQuery(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/products?page=two", "/api/products?sortBy=rating"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}
