package instrumentation

import (
	"context"
	"testing"
)

func TestNewDisabledUsesNoopProviders(t *testing.T) {
	inst, err := New(Config{ServiceName: "test", Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.Metrics() == nil {
		t.Fatal("Metrics() = nil, want noop-backed metrics")
	}

	// Recording against noop instruments must not panic.
	ctx := context.Background()
	inst.Metrics().RecordConnectStarted(ctx, "client-1", "popup")
	inst.Metrics().RecordCodeExchange(ctx, "client-1")
	inst.Metrics().RecordTokenRefresh(ctx, "client-1", true)
	inst.Metrics().RecordStateMismatch(ctx)
	inst.Metrics().RecordStorageOperation(ctx, "save_token", "session", "success", 0.5)
	inst.Metrics().RecordProviderAPICall(ctx, "exchange_code", 200, 12.3, nil)

	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if inst.config.ServiceName != "connect-widget" {
		t.Errorf("ServiceName = %q, want connect-widget", inst.config.ServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	// All recorders must tolerate a nil receiver so callers can skip wiring
	// instrumentation entirely.
	m.RecordConnectStarted(ctx, "c", "popup")
	m.RecordPopupOpened(ctx)
	m.RecordPopupBlocked(ctx)
	m.RecordCallbackProcessed(ctx, false)
	m.RecordCodeExchange(ctx, "c")
	m.RecordTokenRefresh(ctx, "c", false)
	m.RecordRefreshFailed(ctx, "c")
	m.RecordDisconnect(ctx, "user")
	m.RecordStateMismatch(ctx)
	m.RecordMessageDropped(ctx, "origin")
	m.RecordGuardRejection(ctx, "c")
	m.RecordStorageOperation(ctx, "op", "local", "success", 1)
	m.RecordProviderAPICall(ctx, "op", 500, 1, context.DeadlineExceeded)
}
