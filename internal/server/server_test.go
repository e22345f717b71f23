package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7333")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7333" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("allows localhost host:port", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("localhost:7333")
		if err != nil {
			t.Fatalf("expected localhost to be allowed, got error: %v", err)
		}
		if addr != "localhost:7333" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		for _, apiURL := range []string{"http://0.0.0.0:7333", "http://:7333", "192.168.1.5:7333"} {
			if _, err := ListenAddr(apiURL); err == nil {
				t.Fatalf("expected error for %s", apiURL)
			}
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7333")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7333" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("requires url", func(t *testing.T) {
		if _, err := ListenAddr(""); err == nil {
			t.Fatal("expected error for empty url")
		}
	})
}

func TestCORSPreflight(t *testing.T) {
	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/v1/tasks", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	t.Run("loopback origins by default", func(t *testing.T) {
		ts := newTestServer(t)
		for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:8080"} {
			w := preflight(ts.handler, origin)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Fatalf("expected %s allowed, got %q", origin, got)
			}
		}
		w := preflight(ts.handler, "https://evil.example")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("expected remote origin rejected, got %q", got)
		}
	})

	t.Run("configured origins", func(t *testing.T) {
		ts := newTestServerWith(t, testServerConfig{server: Options{AllowedOrigins: []string{"https://app.example"}}})
		w := preflight(ts.handler, "https://app.example")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
			t.Fatalf("expected configured origin allowed, got %q", got)
		}
		w = preflight(ts.handler, "http://localhost:5173")
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("expected loopback rejected when origins are configured, got %q", got)
		}
	})
}

func TestIsLoopbackOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "http://localhost:3000", want: true},
		{origin: "http://127.0.0.1", want: true},
		{origin: "http://[::1]:8080", want: true},
		{origin: "https://example.com", want: false},
		{origin: "null", want: false},
		{origin: "", want: false},
	}
	for _, tt := range tests {
		if got := isLoopbackOrigin(tt.origin); got != tt.want {
			t.Fatalf("isLoopbackOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestValidateID(t *testing.T) {
	valid := []string{"t-abc12345", "f-0b7c6a9e-1d2f-4c3b-9a8e-7f6d5c4b3a21", "legacy_1700000000000"}
	invalid := []string{"", "-leading", "has space", "../etc", "a/b"}
	for _, id := range valid {
		if !validateID(id) {
			t.Fatalf("expected %q valid", id)
		}
	}
	for _, id := range invalid {
		if validateID(id) {
			t.Fatalf("expected %q invalid", id)
		}
	}
}
