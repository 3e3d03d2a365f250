// Package instrumentation provides OpenTelemetry metrics and tracing for the
// connect widget: authorization lifecycle counters (connect, popup, exchange,
// refresh), security counters (state mismatches, dropped messages), and
// storage/provider operation histograms.
//
// Instrumentation is optional. When disabled (or not configured) all
// instruments are backed by no-op providers, so call sites never need nil
// checks beyond the Metrics holder itself.
package instrumentation
