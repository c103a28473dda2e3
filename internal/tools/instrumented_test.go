package tools

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/inboxagent/inboxagent/internal/instrumentation"
)

func testMetrics(t *testing.T) (*instrumentation.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	m, err := instrumentation.NewMetrics(meter, true)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func sumInt64(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T for %s", m.Data, name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestInstrumentedRecordsInvocations(t *testing.T) {
	metrics, reader := testMetrics(t)

	handler := Instrumented("echo", metrics, nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "ok", nil
	})
	if _, err := handler(context.Background(), nil); err != nil {
		t.Fatalf("handler: %v", err)
	}

	if got := sumInt64(t, reader, "tool_invocations_total"); got != 1 {
		t.Errorf("tool_invocations_total = %d, want 1", got)
	}
}

func TestInstrumentedForAccountRecordsFailures(t *testing.T) {
	metrics, reader := testMetrics(t)

	handler := InstrumentedForAccount("echo", "work", metrics, nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("backend down")
	})
	if _, err := handler(context.Background(), nil); err == nil {
		t.Fatal("expected handler error")
	}

	if got := sumInt64(t, reader, "tool_invocations_total"); got != 1 {
		t.Errorf("tool_invocations_total = %d, want 1", got)
	}
}

func TestInstrumentedPassthroughWithoutCollaborators(t *testing.T) {
	calls := 0
	base := func(ctx context.Context, args map[string]any) (string, error) {
		calls++
		return "ok", nil
	}

	handler := Instrumented("echo", nil, nil, base)
	out, err := handler(context.Background(), nil)
	if err != nil || out != "ok" {
		t.Fatalf("handler = %q, %v", out, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
