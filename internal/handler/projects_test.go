package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/service"
)

func newFilterHandler(now time.Time) *ProjectHandler {
	h := NewProjectHandler(nil, ProjectHandlerConfig{Location: time.UTC}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	h.now = func() time.Time { return now }
	return h
}

func TestParseFilter(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)
	h := newFilterHandler(now)

	tests := []struct {
		name     string
		query    string
		wantErr  bool
		search   string
		status   model.ProjectStatus
		showPast bool
		date     string
		today    string
	}{
		{name: "defaults", query: "", showPast: true, today: "2024-06-15"},
		{name: "search trimmed", query: "search=%20alpha%20", search: "alpha", showPast: true, today: "2024-06-15"},
		{name: "status all", query: "status=all", showPast: true, today: "2024-06-15"},
		{name: "status", query: "status=In%20Progress", status: model.StatusInProgress, showPast: true, today: "2024-06-15"},
		{name: "hide past", query: "showPast=false", showPast: false, today: "2024-06-15"},
		{name: "date", query: "date=2024-07-01", showPast: true, date: "2024-07-01", today: "2024-06-15"},
		{name: "fixed today", query: "today=2024-01-02", showPast: true, today: "2024-01-02"},
		{name: "bad status", query: "status=Done", wantErr: true},
		{name: "bad showPast", query: "showPast=maybe", wantErr: true},
		{name: "bad date", query: "date=07/01/2024", wantErr: true},
		{name: "bad today", query: "today=tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects?"+tt.query, nil)
			filter, today, err := h.parseFilter(req)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if filter.Search != tt.search {
				t.Errorf("search = %q, want %q", filter.Search, tt.search)
			}
			if filter.Status != tt.status {
				t.Errorf("status = %q, want %q", filter.Status, tt.status)
			}
			if filter.ShowPast != tt.showPast {
				t.Errorf("showPast = %v, want %v", filter.ShowPast, tt.showPast)
			}
			if tt.date == "" && filter.Date != nil {
				t.Errorf("date = %v, want nil", filter.Date)
			}
			if tt.date != "" && (filter.Date == nil || filter.Date.Format(dto.DateLayout) != tt.date) {
				t.Errorf("date = %v, want %s", filter.Date, tt.date)
			}
			if got := today.Format(dto.DateLayout); got != tt.today {
				t.Errorf("today = %s, want %s", got, tt.today)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "25", want: 25},
		{in: "ten", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseLimit(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errInvalidLimit) {
				t.Errorf("parseLimit(%q): expected errInvalidLimit, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseLimit(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestListQueries_InvalidLimit(t *testing.T) {
	h := newFilterHandler(time.Now())

	rec := httptest.NewRecorder()
	h.ListQueries(rec, httptest.NewRequest(http.MethodGet, "/api/queries?limit=lots", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != errInvalidLimit.Error() {
		t.Errorf("unexpected error message %q", body.Error)
	}
}

func TestHandleServiceError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"user exists", service.ErrUserExists, http.StatusBadRequest, "User already exists"},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
		{"invalid status", service.ErrInvalidStatus, http.StatusBadRequest, ""},
		{"invalid role", service.ErrInvalidRole, http.StatusBadRequest, ""},
		{"incorrect password", service.ErrIncorrectPassword, http.StatusForbidden, "Incorrect manager password"},
		{"project not found", service.ErrProjectNotFound, http.StatusNotFound, "Project not found"},
		{"wrapped user not found", errors.Join(errors.New("lookup"), service.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{"unknown", errors.New("mongo exploded"), http.StatusInternalServerError, "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(logger, rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Error == "" {
				t.Error("error message must not be empty")
			}
			if tt.wantMsg != "" && body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestHandleServiceError_Validation(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(slog.New(slog.NewTextHandler(io.Discard, nil)), rec,
		&service.ValidationError{Missing: []string{"name", "dueDate"}})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Missing) != 2 || body.Missing[0] != "name" || body.Missing[1] != "dueDate" {
		t.Errorf("missing = %v", body.Missing)
	}
}

func TestHandleServiceError_RetryAfter(t *testing.T) {
	tests := []struct {
		retryAfter time.Duration
		want       string
	}{
		{90 * time.Second, "90"},
		{200 * time.Millisecond, "1"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handleServiceError(slog.New(slog.NewTextHandler(io.Discard, nil)), rec,
			&service.AttemptsExceededError{RetryAfter: tt.retryAfter})

		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != tt.want {
			t.Errorf("Retry-After = %q, want %q", got, tt.want)
		}
	}
}
