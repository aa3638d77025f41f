package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/monthly", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenAccrualRun(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accrual/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperatorForbiddenFleetRunAndExport(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "operator")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	for _, target := range []string{"/api/v1/accrual/run-all", "/api/v1/reports/monthly/ST1/export.pdf"} {
		method := http.MethodGet
		if target == "/api/v1/accrual/run-all" {
			method = http.MethodPost
		}
		req := httptest.NewRequest(method, target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", target, resp.Code)
		}
	}
}

func TestAuthMiddleware_ViewerReadsReportsWithIdentity(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer")
	var subject string
	var role Role
	handler := NewMiddleware(secret, NewDefaultPolicy([]string{"/healthz"}, nil)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = SubjectFromContext(r.Context())
		role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/monthly?year=2026&month=1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if subject != "user-1" || role != RoleViewer {
		t.Fatalf("identity mismatch: subject=%s role=%s", subject, role)
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("exempt path: expected 200, got %d", health.Code)
	}
}

func TestAuthMiddleware_StationScopedToken(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "admin", "ST1", " ", "ST2")
	var scope StationScope
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = ScopeFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/v1/reports/monthly/ST1?year=2026&month=1", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/monthly/ST2/export.pdf?year=2026&month=1", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/monthly/ST9?year=2026&month=1", http.StatusForbidden},
		{http.MethodGet, "/api/v1/reports/monthly/ST9/export.xlsx?year=2026&month=1", http.StatusForbidden},
		{http.MethodGet, "/api/v1/reports/monthly?year=2026&month=1", http.StatusOK},
		{http.MethodPost, "/api/v1/accrual/run", http.StatusOK},
		{http.MethodPost, "/api/v1/accrual/run-all", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.want, resp.Code)
		}
	}
	if scope.Fleet() || scope.String() != "ST1,ST2" {
		t.Fatalf("unexpected scope in context: %v", scope.Codes())
	}
}

func TestAuthMiddleware_FleetTokenCarriesFleetScope(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "admin")
	scoped := true
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = !ScopeFromContext(r.Context()).Fleet()
		if !StationAllowed(r.Context(), "ANY") {
			t.Errorf("fleet token must allow every station")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accrual/run-all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || scoped {
		t.Fatalf("expected 200 with fleet scope, got %d scoped=%v", resp.Code, scoped)
	}
}

func TestStationScope(t *testing.T) {
	if scope := NewStationScope([]string{"", "  "}); !scope.Fleet() || scope.String() != "fleet" {
		t.Fatalf("blank claim must be fleet scope, got %v", scope.Codes())
	}
	scope := NewStationScope([]string{"ST2", "ST1 "})
	if !scope.Allows("ST1") || scope.Allows("ST3") {
		t.Fatalf("unexpected scope membership: %v", scope.Codes())
	}
	if got := scope.Codes(); len(got) != 2 || got[0] != "ST1" || got[1] != "ST2" {
		t.Fatalf("codes not sorted: %v", got)
	}
	if !StationAllowed(context.Background(), "ST3") {
		t.Fatalf("context without identity must allow every station")
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mustToken(t *testing.T, secret []byte, role string, stations ...string) string {
	t.Helper()
	claims := Claims{
		Role:     role,
		Stations: stations,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
