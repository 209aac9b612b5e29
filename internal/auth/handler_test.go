package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/opencolegio/opencolegio/internal/auth"
	_ "github.com/opencolegio/opencolegio/testing"
)

func newAuthRouter(t *testing.T, repo auth.Repository) (chi.Router, *auth.Service) {
	t.Helper()
	service := newService(t, repo, nil)
	handler := auth.NewHandler(nil, service, nil)

	r := chi.NewRouter()
	handler.MountPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(service))
		handler.MountProtectedRoutes(r)
	})
	return r, service
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo(testUser(t, "12345678-9", "password123", true)))

	res := postJSON(router, "/login", `{"rut":"12345678-9","password":"password123"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var body struct {
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        struct {
			ID  int64  `json:"id"`
			RUT string `json:"rut"`
		} `json:"user"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Message != "Inicio de sesión exitoso." {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.TokenType != "Bearer" || body.AccessToken == "" {
		t.Fatalf("unexpected token fields: %+v", body)
	}
	if body.User.RUT != "12345678-9" {
		t.Fatalf("unexpected user: %+v", body.User)
	}
	if strings.Contains(res.Body.String(), "password_hash") {
		t.Fatal("response must not leak the credential hash")
	}
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo(testUser(t, "12345678-9", "password123", true)))

	res := postJSON(router, "/login", `{"rut":"12345678-9","password":"wrong"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Credenciales inválidas.") {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestLoginEndpointMissingFields(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo())

	res := postJSON(router, "/login", `{"rut":"12345678-9"}`)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}

	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body.Errors["password"]; !ok {
		t.Fatalf("expected password error, got %v", body.Errors)
	}
}

func TestCurrentUserEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo(testUser(t, "12345678-9", "password123", true)))

	res := postJSON(router, "/login", `{"rut":"12345678-9","password":"password123"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("login failed: %d", res.Code)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", out.Code, out.Body.String())
	}
	if !strings.Contains(out.Body.String(), `"rut":"12345678-9"`) {
		t.Fatalf("unexpected body: %s", out.Body.String())
	}

	// No token at all.
	out = httptest.NewRecorder()
	router.ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/user", nil))
	if out.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", out.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t, newStubRepo(testUser(t, "12345678-9", "password123", true)))

	res := postJSON(router, "/login", `{"rut":"12345678-9","password":"password123"}`)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", out.Code, out.Body.String())
	}
	if !strings.Contains(out.Body.String(), "Sesión cerrada correctamente.") {
		t.Fatalf("unexpected body: %s", out.Body.String())
	}

	// The revoked token no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out = httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", out.Code)
	}
}
