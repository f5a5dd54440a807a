package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/academy/internal/platform/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:      "test",
		Storage:  config.StorageConfig{Backend: config.BackendMemory},
		Auth:     config.AuthConfig{JWTSecret: "test", AccessTokenTTL: 60, BcryptCost: 4},
		Progress: config.ProgressConfig{PersistPolicy: "log"},
		Grading:  config.GradingConfig{Backend: config.BackendMemory, TTL: 60},
		// A missing content directory starts an empty catalogue.
		ContentPath: t.TempDir() + "/missing",
	}
}

func TestHealthEndpoints(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name:       "courses list is empty",
			path:       "/api/courses",
			wantStatus: http.StatusOK,
			wantBody:   `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestMetricsExposeLiveSubscribers(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "academy_live_subscribers 0") {
		t.Errorf("metrics output lacks live subscriber gauge:\n%s", rec.Body.String())
	}
}

func TestNewApp_BadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Progress.PersistPolicy = "sometimes"
	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown persist policy")
	}
}
