// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the warden gateway.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, mailbox backend calls, and tool dispatch
//   - Distributed tracing for request flows and backend calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Mailbox Backend Metrics:
//   - mailbox_backend_operations_total: Counter of backend operations by operation, status
//   - mailbox_backend_operation_duration_seconds: Histogram of backend operation durations
//
// Tool Dispatch Metrics:
//   - gateway_tool_invocations_total: Counter of tool invocations by tool name and status
//   - gateway_tool_duration_seconds: Histogram of tool execution durations
//
// Session and Rule Metrics:
//   - session_store_operations_total: Counter of session store operations by operation, status
//   - rule_matches_total: Counter of messages matched by filtering rules
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - Tool invocations (tool.<name>)
//   - Mailbox backend calls (mailbox.<operation>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: warden)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "warden",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/mcp/execute_tool", 200, time.Since(start))
//
//	// Record a mailbox backend operation
//	recorder.RecordBackendOperation(ctx, "list", "success", time.Since(start))
//
//	// Record a tool invocation
//	recorder.RecordToolInvocation(ctx, "warden_list_emails", "success", time.Since(start))
package instrumentation
