package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradeline-crm/api/internal/auth"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/handler"
)

// --- Mock AuthStore ---

type mockAuthStore struct {
	users map[uuid.UUID]database.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	for _, u := range m.users {
		if u.Email == email && u.IsActive {
			return u, nil
		}
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	r.Route("/", h.RegisterRoutes)
	return r
}

func seedUser(t *testing.T, store *mockAuthStore, email, password, role string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := database.User{
		ID:             uuid.New(),
		FullName:       "Test User",
		Email:          email,
		HashedPassword: string(hashed),
		Role:           role,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	store.users[u.ID] = u
	return u
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestLoginSuccess(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	user := seedUser(t, store, "owner@example.com", "correct-horse", "OWNER")

	rr := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "owner@example.com",
		"password": "correct-horse",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["access_token"] == "" || resp["access_token"] == nil {
		t.Error("expected access_token in response")
	}
	if resp["refresh_token"] == "" || resp["refresh_token"] == nil {
		t.Error("expected refresh_token in response")
	}

	// The access token must round-trip through our own validator.
	claims, err := auth.ValidateToken(testJWTSecret, resp["access_token"].(string))
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user id: got %s, want %s", claims.UserID, user.ID)
	}
	if claims.Role != "OWNER" {
		t.Errorf("token role: got %s, want OWNER", claims.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	seedUser(t, store, "owner@example.com", "correct-horse", "OWNER")

	rr := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "owner@example.com",
		"password": "battery-staple",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever123",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestLoginMissingFields(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := postJSON(t, router, "/auth/login", map[string]string{"email": "owner@example.com"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestRefreshSuccess(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	user := seedUser(t, store, "sales@example.com", "correct-horse", "SALES")

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, router, "/auth/refresh", map[string]string{"refresh_token": refresh})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	userResp := resp["user"].(map[string]interface{})
	if userResp["id"] != user.ID.String() {
		t.Errorf("user id: got %v, want %s", userResp["id"], user.ID)
	}
}

func TestRefreshInvalidToken(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := postJSON(t, router, "/auth/refresh", map[string]string{"refresh_token": "not-a-jwt"})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestRefreshDeactivatedUser(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	user := seedUser(t, store, "sales@example.com", "correct-horse", "SALES")
	user.IsActive = false
	store.users[user.ID] = user

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, router, "/auth/refresh", map[string]string{"refresh_token": refresh})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}
