package framework

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		method string
		ready  func() bool
		code   int
		status string
	}{
		{"ready", http.MethodGet, func() bool { return true }, http.StatusOK, "ok"},
		{"no readiness probe", http.MethodGet, nil, http.StatusOK, "ok"},
		{"starting", http.MethodGet, func() bool { return false }, http.StatusServiceUnavailable, "starting"},
		{"wrong method", http.MethodPost, nil, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(":0", prometheus.NewRegistry(), tt.ready, zap.NewNop())
			rec := httptest.NewRecorder()
			s.server.Handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/healthz", nil))

			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.status == "" {
				return
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["status"] != tt.status {
				t.Errorf("status = %v, want %s", body["status"], tt.status)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "jukebox_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := NewServer(":0", reg, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "jukebox_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}
}
