package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, ctx context.Context, detailedLabels bool) *Provider {
	t.Helper()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
		DetailedLabels:  detailedLabels,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx, false).Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp/execute_tool", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "GET", "/mcp/list_tools", 403, 50*time.Millisecond)
}

func TestMetrics_RecordBackendOperation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordBackendOperation(ctx, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordBackendOperation(ctx, OperationTrash, StatusError, 500*time.Millisecond)
	metrics.RecordBackendOperation(ctx, OperationAuthenticate, StatusSuccess, 100*time.Millisecond)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordToolInvocation(ctx, "warden_list_emails", StatusSuccess, 150*time.Millisecond)
	metrics.RecordToolInvocation(ctx, "warden_trash_emails", StatusError, 300*time.Millisecond)
}

func TestMetrics_RecordToolInvocationWithUser(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name           string
		detailedLabels bool
	}{
		{"detailed labels disabled", false},
		{"detailed labels enabled", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newTestProvider(t, ctx, tt.detailedLabels).Metrics()

			// Should not panic either way; the user label is only
			// attached when detailed labels are enabled.
			metrics.RecordToolInvocationWithUser(ctx, "warden_list_emails", StatusSuccess, "jane@example.com", 100*time.Millisecond)
			metrics.RecordToolInvocationWithUser(ctx, "warden_list_emails", StatusError, "", 100*time.Millisecond)
		})
	}
}

func TestMetrics_RecordSessionStoreOperation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx, false).Metrics()

	// Should not panic
	metrics.RecordSessionStoreOperation(ctx, "get", StatusSuccess)
	metrics.RecordSessionStoreOperation(ctx, "save", StatusError)
	metrics.RecordSessionStoreOperation(ctx, "delete", StatusSuccess)
}

func TestMetrics_RecordRuleMatches(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx, true).Metrics()

	// Should not panic
	metrics.RecordRuleMatches(ctx, "rule-1", 3)
	metrics.RecordRuleMatches(ctx, "", 1)
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	ctx := context.Background()

	var metrics *Metrics

	// All recording methods must be no-ops on a nil receiver.
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp/execute_tool", 200, time.Millisecond)
	metrics.RecordBackendOperation(ctx, OperationList, StatusSuccess, time.Millisecond)
	metrics.RecordToolInvocation(ctx, "warden_list_emails", StatusSuccess, time.Millisecond)
	metrics.RecordToolInvocationWithUser(ctx, "warden_list_emails", StatusSuccess, "u", time.Millisecond)
	metrics.RecordSessionStoreOperation(ctx, "get", StatusSuccess)
	metrics.RecordRuleMatches(ctx, "rule-1", 1)
}

func TestMetrics_UninitializedIsSafe(t *testing.T) {
	ctx := context.Background()

	// A zero-value Metrics (disabled provider) must not panic.
	metrics := &Metrics{}
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp/execute_tool", 200, time.Millisecond)
	metrics.RecordBackendOperation(ctx, OperationList, StatusSuccess, time.Millisecond)
	metrics.RecordToolInvocation(ctx, "warden_list_emails", StatusSuccess, time.Millisecond)
	metrics.RecordSessionStoreOperation(ctx, "get", StatusSuccess)
	metrics.RecordRuleMatches(ctx, "rule-1", 1)
}

func TestMetrics_DisabledProvider(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ctx, Config{
		ServiceName: "test-service",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("failed to create disabled provider: %v", err)
	}

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("disabled provider should still return a metrics recorder")
	}

	// Recording on a disabled provider must be a no-op, not a panic.
	metrics.RecordToolInvocation(ctx, "warden_list_emails", StatusSuccess, time.Millisecond)
}
