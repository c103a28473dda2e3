package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inboxagent/inboxagent/internal/instrumentation"
)

func TestNewMetricsServer_RequiresProvider(t *testing.T) {
	_, err := NewMetricsServer(MetricsServerConfig{Addr: ":9090"})
	if err == nil {
		t.Fatal("expected error without instrumentation provider")
	}
}

func TestNewMetricsServer_RequiresEnabledProvider(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = NewMetricsServer(MetricsServerConfig{
		Addr:                    ":9090",
		InstrumentationProvider: provider,
	})
	if err == nil {
		t.Fatal("expected error with disabled provider")
	}
}

func TestNewMetricsServer_DefaultAddr(t *testing.T) {
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	s, err := NewMetricsServer(MetricsServerConfig{InstrumentationProvider: provider})
	if err != nil {
		t.Fatalf("NewMetricsServer() failed: %v", err)
	}
	if s.Addr() != DefaultMetricsAddr {
		t.Errorf("Addr() = %q, want %q", s.Addr(), DefaultMetricsAddr)
	}
}

func TestMetricsServerHandlerMountsHealthEndpoints(t *testing.T) {
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	health := NewHealthChecker(nil)
	health.SetReady(true)

	s, err := NewMetricsServer(MetricsServerConfig{
		InstrumentationProvider: provider,
		Health:                  health,
	})
	if err != nil {
		t.Fatalf("NewMetricsServer() failed: %v", err)
	}

	handler := s.Handler()
	for _, path := range []string{"/metrics", "/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
