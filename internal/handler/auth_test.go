package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tabletrack/api/internal/auth"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type staticUsers []model.User

func (s staticUsers) Get() []model.User { return s }

func loginRouter(t *testing.T) *chi.Mux {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	users := staticUsers{
		{ID: "u1", Username: "wati", PasswordHash: string(hash), Name: "Wati", Role: enum.UserRoleCashier, BranchID: "b1"},
	}
	r := chi.NewRouter()
	NewAuthHandler(users, "test-secret", testLog()).RegisterRoutes(r)
	return r
}

func TestLoginSuccess(t *testing.T) {
	router := loginRouter(t)
	rec := post(t, router, "/auth/login", map[string]string{
		"username": "wati",
		"password": "hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != "u1" || resp.User.BranchID != "b1" {
		t.Errorf("user = %+v", resp.User)
	}

	claims, err := auth.ValidateToken("test-secret", resp.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != enum.UserRoleCashier {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := loginRouter(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"username": "wati", "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"username": "ghost", "password": "hunter2"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"username": "wati"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, router, "/auth/login", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
