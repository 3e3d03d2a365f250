package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the connect widget
type Metrics struct {
	// Authorization lifecycle
	ConnectStarted    metric.Int64Counter
	PopupOpened       metric.Int64Counter
	PopupBlocked      metric.Int64Counter
	CallbackProcessed metric.Int64Counter
	CodeExchanged     metric.Int64Counter
	TokenRefreshed    metric.Int64Counter
	RefreshFailed     metric.Int64Counter
	Disconnected      metric.Int64Counter

	// Security
	StateMismatchDetected metric.Int64Counter
	MessagesDropped       metric.Int64Counter
	GuardRejections       metric.Int64Counter

	// Storage
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram

	// Provider API
	ProviderAPICallsTotal metric.Int64Counter
	ProviderAPIDuration   metric.Float64Histogram
	ProviderAPIErrors     metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	widgetMeter := inst.Meter("widget")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")
	providerMeter := inst.Meter("provider")

	var err error
	m.ConnectStarted, err = widgetMeter.Int64Counter(
		"widget.connect.started",
		metric.WithDescription("Number of interactive authorization attempts started"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connect.started counter: %w", err)
	}

	m.PopupOpened, err = widgetMeter.Int64Counter(
		"widget.popup.opened",
		metric.WithDescription("Number of authorization popups opened"),
		metric.WithUnit("{popup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create popup.opened counter: %w", err)
	}

	m.PopupBlocked, err = widgetMeter.Int64Counter(
		"widget.popup.blocked",
		metric.WithDescription("Number of popups refused by the runtime"),
		metric.WithUnit("{popup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create popup.blocked counter: %w", err)
	}

	m.CallbackProcessed, err = widgetMeter.Int64Counter(
		"widget.callback.processed",
		metric.WithDescription("Number of authorization callbacks processed"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create callback.processed counter: %w", err)
	}

	m.CodeExchanged, err = widgetMeter.Int64Counter(
		"widget.code.exchanged",
		metric.WithDescription("Number of authorization codes exchanged for tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenRefreshed, err = widgetMeter.Int64Counter(
		"widget.token.refreshed",
		metric.WithDescription("Number of successful silent refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.RefreshFailed, err = widgetMeter.Int64Counter(
		"widget.refresh.failed",
		metric.WithDescription("Number of refresh failures (each terminates the session)"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh.failed counter: %w", err)
	}

	m.Disconnected, err = widgetMeter.Int64Counter(
		"widget.disconnected",
		metric.WithDescription("Number of disconnects (explicit or forced)"),
		metric.WithUnit("{disconnect}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create disconnected counter: %w", err)
	}

	m.StateMismatchDetected, err = securityMeter.Int64Counter(
		"widget.state.mismatch",
		metric.WithDescription("Number of callbacks rejected for state mismatch"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create state.mismatch counter: %w", err)
	}

	m.MessagesDropped, err = securityMeter.Int64Counter(
		"widget.messages.dropped",
		metric.WithDescription("Number of cross-window messages ignored"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages.dropped counter: %w", err)
	}

	m.GuardRejections, err = securityMeter.Int64Counter(
		"widget.guard.rejections",
		metric.WithDescription("Number of token endpoint calls refused by the rate guard"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard.rejections counter: %w", err)
	}

	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"widget.storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"widget.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.ProviderAPICallsTotal, err = providerMeter.Int64Counter(
		"widget.provider.api.calls.total",
		metric.WithDescription("Total number of provider API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.calls.total counter: %w", err)
	}

	m.ProviderAPIDuration, err = providerMeter.Float64Histogram(
		"widget.provider.api.duration",
		metric.WithDescription("Provider API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.duration histogram: %w", err)
	}

	m.ProviderAPIErrors, err = providerMeter.Int64Counter(
		"widget.provider.api.errors",
		metric.WithDescription("Number of failed provider API calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.errors counter: %w", err)
	}

	return m, nil
}

// RecordConnectStarted records the start of an interactive authorization attempt
func (m *Metrics) RecordConnectStarted(ctx context.Context, clientID, transport string) {
	if m == nil || m.ConnectStarted == nil {
		return
	}
	m.ConnectStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
		attribute.String(AttrTransport, transport),
	))
}

// RecordPopupOpened records a successfully opened authorization popup
func (m *Metrics) RecordPopupOpened(ctx context.Context) {
	if m == nil || m.PopupOpened == nil {
		return
	}
	m.PopupOpened.Add(ctx, 1)
}

// RecordPopupBlocked records a popup refused by the runtime
func (m *Metrics) RecordPopupBlocked(ctx context.Context) {
	if m == nil || m.PopupBlocked == nil {
		return
	}
	m.PopupBlocked.Add(ctx, 1)
}

// RecordCallbackProcessed records a processed authorization callback
func (m *Metrics) RecordCallbackProcessed(ctx context.Context, success bool) {
	if m == nil || m.CallbackProcessed == nil {
		return
	}
	m.CallbackProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrSuccess, success),
	))
}

// RecordCodeExchange records a successful authorization code exchange
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID string) {
	if m == nil || m.CodeExchanged == nil {
		return
	}
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
	))
}

// RecordTokenRefresh records a successful silent refresh
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string, rotated bool) {
	if m == nil || m.TokenRefreshed == nil {
		return
	}
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
		attribute.Bool(AttrTokenRotated, rotated),
	))
}

// RecordRefreshFailed records a refresh failure
func (m *Metrics) RecordRefreshFailed(ctx context.Context, clientID string) {
	if m == nil || m.RefreshFailed == nil {
		return
	}
	m.RefreshFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
	))
}

// RecordDisconnect records a disconnect with its cause ("user", "refresh_failed", ...)
func (m *Metrics) RecordDisconnect(ctx context.Context, cause string) {
	if m == nil || m.Disconnected == nil {
		return
	}
	m.Disconnected.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCause, cause),
	))
}

// RecordStateMismatch records a callback rejected for state mismatch
func (m *Metrics) RecordStateMismatch(ctx context.Context) {
	if m == nil || m.StateMismatchDetected == nil {
		return
	}
	m.StateMismatchDetected.Add(ctx, 1)
}

// RecordMessageDropped records an ignored cross-window message
func (m *Metrics) RecordMessageDropped(ctx context.Context, reason string) {
	if m == nil || m.MessagesDropped == nil {
		return
	}
	m.MessagesDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDropReason, reason),
	))
}

// RecordGuardRejection records a token endpoint call refused by the rate guard
func (m *Metrics) RecordGuardRejection(ctx context.Context, clientID string) {
	if m == nil || m.GuardRejections == nil {
		return
	}
	m.GuardRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
	))
}

// RecordStorageOperation records a storage operation with its result
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, backend, result string, durationMs float64) {
	if m == nil || m.StorageOperationTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageBackend, backend),
		attribute.String(AttrStorageResult, result),
	)
	m.StorageOperationTotal.Add(ctx, 1, attrs)
	m.StorageOperationDuration.Record(ctx, durationMs, attrs)
}

// RecordProviderAPICall records a provider API call
func (m *Metrics) RecordProviderAPICall(ctx context.Context, operation string, statusCode int, durationMs float64, err error) {
	if m == nil || m.ProviderAPICallsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrProviderOperation, operation),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
	m.ProviderAPICallsTotal.Add(ctx, 1, attrs)
	m.ProviderAPIDuration.Record(ctx, durationMs, attrs)
	if err != nil {
		m.ProviderAPIErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrProviderOperation, operation),
		))
	}
}
