package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

const testJWTSecret = "test-secret"

type fakeUserRepo struct {
	nextID  int
	byID    map[int]types.User
	byEmail map[string]int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		nextID:  1,
		byID:    make(map[int]types.User),
		byEmail: make(map[string]int),
	}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = f.nextID
	f.nextID++
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user.ID
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := f.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user.ID
	return user, nil
}

func newAuthTestRouter(repo *fakeUserRepo) *chi.Mux {
	userService := services.NewUserService(repo)
	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testJWTSecret)
	})
	return router
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerTestUser(t *testing.T, router http.Handler, email string) AuthResponse {
	t.Helper()
	rec := postJSON(t, router, "/auth/register", map[string]string{
		"name":     "Test Rider",
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}
	var parsed AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return parsed
}

func TestRegisterIssuesToken(t *testing.T) {
	router := newAuthTestRouter(newFakeUserRepo())

	resp := registerTestUser(t, router, "rider@example.com")
	if resp.Token == "" {
		t.Fatalf("expected token in register response")
	}
	if resp.Role != types.RoleUser {
		t.Fatalf("expected role %q, got %q", types.RoleUser, resp.Role)
	}
	if resp.User.Email != "rider@example.com" {
		t.Fatalf("unexpected user email %q", resp.User.Email)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	router := newAuthTestRouter(newFakeUserRepo())

	registerTestUser(t, router, "rider@example.com")
	rec := postJSON(t, router, "/auth/register", map[string]string{
		"name":     "Second Rider",
		"email":    "rider@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterRejectsMalformedPayload(t *testing.T) {
	router := newAuthTestRouter(newFakeUserRepo())

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing email", map[string]string{"name": "A", "password": "secret123"}},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "secret123"}},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "123"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/auth/register", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLoginVerifiesCredentials(t *testing.T) {
	router := newAuthTestRouter(newFakeUserRepo())
	registerTestUser(t, router, "rider@example.com")

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "rider@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, router, "/auth/login", map[string]string{
		"email":    "rider@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/auth/login", map[string]string{
		"email":    "unknown@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestMeReturnsAuthenticatedUser(t *testing.T) {
	router := newAuthTestRouter(newFakeUserRepo())
	resp := registerTestUser(t, router, "rider@example.com")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d: %s", rec.Code, rec.Body.String())
	}
	var user types.User
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if user.Email != "rider@example.com" {
		t.Fatalf("unexpected user email %q", user.Email)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password material leaked in response")
	}
}

func TestMeRejectsMissingOrBadToken(t *testing.T) {
	router := newAuthTestRouter(newFakeUserRepo())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestRequireAdminGatesByRole(t *testing.T) {
	repo := newFakeUserRepo()
	userService := services.NewUserService(repo)

	router := chi.NewRouter()
	router.With(RequireAuth(testJWTSecret), RequireAdmin(userService)).
		Get("/admin-only", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	user, err := repo.Create(context.Background(), types.User{Name: "Rider", Email: "rider@example.com", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	admin, err := repo.Create(context.Background(), types.User{Name: "Admin", Email: "admin@example.com", Role: types.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	for _, tc := range []struct {
		name   string
		userID int
		want   int
	}{
		{"regular user forbidden", user.ID, http.StatusForbidden},
		{"admin allowed", admin.ID, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			token, err := issueToken(tc.userID, []byte(testJWTSecret), defaultTokenTTL)
			if err != nil {
				t.Fatalf("issue token: %v", err)
			}
			req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}
