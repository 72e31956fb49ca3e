package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tabletrack/api/internal/auth"
	"github.com/tabletrack/api/internal/enum"
)

const testSecret = "test-secret"

func protectedRouter(extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/branches/{bid}", func(r chi.Router) {
		r.Use(Authenticate(testSecret))
		r.Use(RequireBranch)
		for _, mw := range extra {
			r.Use(mw)
		}
		r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	rec := doRequest(t, protectedRouter(), "", "/branches/b1/ping")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	rec := doRequest(t, protectedRouter(), "garbage", "/branches/b1/ping")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireBranchScoping(t *testing.T) {
	cashier, err := auth.GenerateToken(testSecret, "u1", "b1", enum.UserRoleCashier)
	if err != nil {
		t.Fatal(err)
	}
	owner, err := auth.GenerateToken(testSecret, "u2", "b1", enum.UserRoleOwner)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{"own branch", cashier, "/branches/b1/ping", http.StatusOK},
		{"other branch", cashier, "/branches/b2/ping", http.StatusForbidden},
		{"owner any branch", owner, "/branches/b2/ping", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, protectedRouter(), tt.token, tt.path)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	kitchen, err := auth.GenerateToken(testSecret, "u1", "b1", enum.UserRoleKitchen)
	if err != nil {
		t.Fatal(err)
	}
	manager, err := auth.GenerateToken(testSecret, "u2", "b1", enum.UserRoleManager)
	if err != nil {
		t.Fatal(err)
	}

	router := protectedRouter(RequireRole(enum.UserRoleManager, enum.UserRoleOwner))

	if rec := doRequest(t, router, kitchen, "/branches/b1/ping"); rec.Code != http.StatusForbidden {
		t.Errorf("kitchen status = %d, want 403", rec.Code)
	}
	if rec := doRequest(t, router, manager, "/branches/b1/ping"); rec.Code != http.StatusOK {
		t.Errorf("manager status = %d, want 200", rec.Code)
	}
}
