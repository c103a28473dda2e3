package tools

import (
	"context"
	"time"

	"github.com/inboxagent/inboxagent/internal/instrumentation"
)

// Instrumented wraps a tool handler with metrics and audit logging.
// Either metrics or audit may be nil; with both nil the handler is
// returned unchanged.
//
// Usage:
//
//	registry.MustRegister(tools.Tool{
//		Name:    "get_email",
//		Handler: tools.Instrumented("get_email", metrics, audit, handler),
//		...
//	})
func Instrumented(
	toolName string,
	metrics *instrumentation.Metrics,
	audit *instrumentation.AuditLogger,
	handler Handler,
) Handler {
	return InstrumentedForAccount(toolName, "", metrics, audit, handler)
}

// InstrumentedForAccount is Instrumented with an account label on the tool
// metrics. The label only reaches the metrics backend when the provider has
// detailed labels enabled.
func InstrumentedForAccount(
	toolName, account string,
	metrics *instrumentation.Metrics,
	audit *instrumentation.AuditLogger,
	handler Handler,
) Handler {
	if metrics == nil && audit == nil {
		return handler
	}

	return func(ctx context.Context, args map[string]any) (string, error) {
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx)

		result, err := handler(ctx, args)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
		} else {
			invocation.CompleteSuccess()
		}

		if metrics != nil {
			if account != "" {
				metrics.RecordToolInvocationWithAccount(ctx, toolName, status, account, duration)
			} else {
				metrics.RecordToolInvocation(ctx, toolName, status, duration)
			}
		}
		if audit != nil {
			audit.LogToolInvocation(invocation)
		}

		return result, err
	}
}

// InstrumentAll wraps every handler in the registry's tools with
// Instrumented before registration. It is a convenience for wiring a
// whole tool set at once.
func InstrumentAll(
	r *Registry,
	metrics *instrumentation.Metrics,
	audit *instrumentation.AuditLogger,
	toolset []Tool,
) error {
	return InstrumentAllForAccount(r, "", metrics, audit, toolset)
}

// InstrumentAllForAccount is InstrumentAll with an account label on the
// tool metrics.
func InstrumentAllForAccount(
	r *Registry,
	account string,
	metrics *instrumentation.Metrics,
	audit *instrumentation.AuditLogger,
	toolset []Tool,
) error {
	for _, t := range toolset {
		t.Handler = InstrumentedForAccount(t.Name, account, metrics, audit, t.Handler)
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
