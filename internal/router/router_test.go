package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticHealth bool

func (h staticHealth) Healthy() bool { return bool(h) }

func newTestRouter(health ChainHealth) http.Handler {
	return New(nil, nil, nil, nil, nil, nil, nil, health, "http://localhost:3000")
}

func TestHealthReflectsChainIntegrity(t *testing.T) {
	tests := []struct {
		name       string
		health     ChainHealth
		wantStatus int
	}{
		{"intact chain", staticHealth(true), http.StatusOK},
		{"broken chain", staticHealth(false), http.StatusServiceUnavailable},
		{"no sweeper wired", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.health)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
