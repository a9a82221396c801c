package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pinger struct{ err error }

func (p *pinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v", got)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	ok := &pinger{}
	down := &pinger{err: errors.New("connection refused")}

	tests := []struct {
		name        string
		credentials HealthChecker
		projects    HealthChecker
		cache       HealthChecker
		wantStatus  int
		wantChecks  map[string]string
	}{
		{
			name: "all healthy", credentials: ok, projects: ok, cache: ok,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"mongo": "ok", "postgres": "ok", "redis": "ok"},
		},
		{
			name: "project store down", credentials: ok, projects: down, cache: ok,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "error: connection refused"},
		},
		{
			name: "redis is optional", credentials: ok, projects: ok,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"redis": "not configured"},
		},
		{
			name: "redis configured but down", credentials: ok, projects: ok, cache: down,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"redis": "error: connection refused"},
		},
		{
			name: "credential store missing", projects: ok,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"mongo": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.credentials, tt.projects, tt.cache)

			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			wantField := "ok"
			if tt.wantStatus != http.StatusOK {
				wantField = "unhealthy"
			}
			if resp.Status != wantField {
				t.Errorf("status field = %q, want %q", resp.Status, wantField)
			}
			for name, want := range tt.wantChecks {
				if got := resp.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}
