package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cajuhub/roombook/libs/auth"
	"github.com/cajuhub/roombook/libs/httpx"
)

func TestRequireRole(t *testing.T) {
	h := requireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set(httpx.RoleHeader, "member")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK.Header.Set(httpx.RoleHeader, auth.RoleAdmin)
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.NewClaims("user-1", "member", time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(httpx.UserIDHeader) != "user-1" || r.Header.Get(httpx.RoleHeader) != "member" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// Spoofed identity headers must be overwritten by the token's claims.
	req.Header.Set(httpx.UserIDHeader, "someone-else")
	req.Header.Set(httpx.RoleHeader, auth.RoleAdmin)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	for name, header := range map[string]string{
		"bad token":    "Bearer badtoken",
		"empty bearer": "Bearer ",
		"basic":        "Basic dXNlcjpwYXNz",
		"missing":      "",
	} {
		reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		if header != "" {
			reqBad.Header.Set("Authorization", header)
		}
		rwBad := httptest.NewRecorder()
		h.ServeHTTP(rwBad, reqBad)
		if rwBad.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rwBad.Code)
		}
	}
}

func TestRoutesProxyWithIdentity(t *testing.T) {
	var gotUser, gotRole, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get(httpx.UserIDHeader)
		gotRole = r.Header.Get(httpx.RoleHeader)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	target, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	secret := "test-secret"
	mux := http.NewServeMux()
	registerRoutes(mux, target, secret, nil)

	member, _ := auth.SignHS256(auth.NewClaims("alice", "member", time.Hour), secret)
	admin, _ := auth.SignHS256(auth.NewClaims("root", auth.RoleAdmin, time.Hour), secret)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"member books", "/api/v1/bookings/me", member, http.StatusOK},
		{"member calendar", "/api/v1/spaces/R1/calendar", member, http.StatusOK},
		{"member denied admin", "/api/v1/admin/stats", member, http.StatusForbidden},
		{"admin stats", "/api/v1/admin/stats", admin, http.StatusOK},
		{"anonymous", "/api/v1/bookings", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		gotPath = ""
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rw.Code)
		}
		if tc.status == http.StatusOK && gotPath != tc.path {
			t.Fatalf("%s: upstream saw path %q", tc.name, gotPath)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/agenda", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	if gotUser != "root" || gotRole != auth.RoleAdmin {
		t.Fatalf("identity not forwarded: user=%q role=%q", gotUser, gotRole)
	}
}

func TestRoutesUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target, _ := url.Parse(upstream.URL)
	upstream.Close()

	mux := http.NewServeMux()
	registerRoutes(mux, target, "s", nil)
	token, _ := auth.SignHS256(auth.NewClaims("alice", "member", time.Hour), "s")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
}

func TestRateLimitIgnoresClientIdentityHeaders(t *testing.T) {
	mux := http.NewServeMux()
	registerRoutes(mux, &url.URL{Scheme: "http", Host: "127.0.0.1:1"}, "s", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := newHandler(mux, logger, httpx.NewRateLimiter(1, time.Minute).Middleware(), httpx.CORSPolicy{}, 1<<20, time.Second)

	var codes []int
	for _, uid := range []string{"u1", "u2", "u3", "u4", "u5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/me", nil)
		req.RemoteAddr = "198.51.100.4:4000"
		req.Header.Set(httpx.UserIDHeader, uid)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
	}
	want := []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests}
	if len(codes) != len(want) {
		t.Fatalf("got %v", codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}
