// Package instrumentation provides OpenTelemetry metrics and tracing for
// the agent: model calls, turn rounds, tool invocations, Google API
// operations, and OAuth flows.
//
// Metrics can be exported via Prometheus (default), OTLP, or stdout;
// traces via OTLP or stdout. Configuration comes from environment
// variables, see DefaultConfig:
//
//   - INSTRUMENTATION_ENABLED: master switch (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_SERVICE_NAME: service name (default: inboxagent)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector endpoint for otlp exporters
//   - OTEL_TRACES_SAMPLER_ARG: trace sampling rate (default: 0.1)
//   - AUDIT_LOGGING_ENABLED: audit log switch (default: true)
//   - AUDIT_LOGGING_INCLUDE_PII: log full email addresses (default: false)
//
// A disabled provider hands out no-op recorders, so call sites never need
// to branch on whether instrumentation is configured.
package instrumentation
