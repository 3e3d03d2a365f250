package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span and metric attribute keys.
//
// SECURITY WARNING: Never put actual sensitive values (access tokens, refresh
// tokens, authorization codes, code verifiers, client secrets) into traces or
// metrics. Only record metadata such as token types, expiry times, transports,
// and validation results. Traces are persisted, replicated, and visible to
// wider audiences than the credentials they would leak.
const (
	// Widget lifecycle attributes
	AttrClientID     = "widget.client_id"    // OAuth client identifier (non-secret)
	AttrEnvironment  = "widget.environment"  // sandbox or production
	AttrTransport    = "widget.transport"    // popup or redirect
	AttrStatus       = "widget.status"       // connection status name
	AttrSuccess      = "widget.success"      // operation outcome (boolean)
	AttrCause        = "widget.cause"        // disconnect cause
	AttrDropReason   = "widget.drop_reason"  // why a message was ignored
	AttrGrantType    = "widget.grant_type"   // authorization_code or refresh_token
	AttrTokenRotated = "widget.token_rotated" //nolint:gosec // boolean, not a token value

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageBackend   = "storage.backend"
	AttrStorageResult    = "storage.result"

	// Provider attributes
	AttrProviderOperation = "provider.operation"
	AttrHTTPStatusCode    = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddFlowAttributes adds common authorization flow attributes to a span (nil-safe)
func AddFlowAttributes(span trace.Span, clientID, grantType string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if grantType != "" {
		SetSpanAttributes(span, attribute.String(AttrGrantType, grantType))
	}
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, backend string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageBackend, backend),
	)
}
