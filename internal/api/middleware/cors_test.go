package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://chat.example"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})

	cases := []struct {
		origin string
		status int
		allow  string
	}{
		{"https://chat.example", http.StatusOK, "https://chat.example"},
		{"https://evil.example", http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
		req.Header.Set("Origin", tc.origin)
		rec := httptest.NewRecorder()
		handler(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.origin, tc.status, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.allow {
			t.Fatalf("%s: expected allow-origin %q, got %q", tc.origin, tc.allow, got)
		}
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	called := false
	handler := CORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}})(
		func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if !called {
		t.Fatal("handler was not called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected *, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("credentials must not be allowed with a wildcard")
	}
}
