package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/projectdesk/projectdesk/internal/auth"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHandler_StaticRoutes(t *testing.T) {
	h := New()

	tests := []struct {
		name       string
		serve      http.HandlerFunc
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{"index", h.Index, http.StatusOK, "service", "projectdesk"},
		{"not found", h.NotFound, http.StatusNotFound, "error", "resource not found"},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed, "error", "method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if got := decodeBody(t, rec)[tt.wantKey]; got != tt.wantValue {
				t.Errorf("%s = %v, want %q", tt.wantKey, got, tt.wantValue)
			}
		})
	}
}

func TestCookieConfig(t *testing.T) {
	expires := time.Date(2031, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := httptest.NewRecorder()
	CookieConfig{Secure: true}.setToken(rec, "tok", expires)
	set := rec.Result().Cookies()
	if len(set) != 1 {
		t.Fatalf("got %d cookies, want 1", len(set))
	}
	c := set[0]
	if c.Name != auth.TokenCookieName || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected token cookie: %+v", c)
	}
	if !c.Expires.Equal(expires) {
		t.Errorf("Expires = %v, want %v", c.Expires, expires)
	}

	rec = httptest.NewRecorder()
	CookieConfig{}.clearToken(rec)
	cleared := rec.Result().Cookies()[0]
	if cleared.Value != "" || cleared.MaxAge >= 0 || cleared.Secure {
		t.Errorf("unexpected cleared cookie: %+v", cleared)
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
	req.Body = nil

	var v map[string]any
	if err := decodeJSON(req, &v); err == nil {
		t.Error("expected error for missing body")
	}
}
