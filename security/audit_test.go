package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newCaptureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestAuditorLogsEvents(t *testing.T) {
	logger, buf := newCaptureLogger()
	a := NewAuditor(logger, true)

	a.LogConnectStarted("client-1", "popup")
	a.LogStateMismatch("client-1")

	out := buf.String()
	if !strings.Contains(out, "connect_started") {
		t.Error("connect_started event not logged")
	}
	if !strings.Contains(out, "state_mismatch") {
		t.Error("state_mismatch event not logged")
	}
	if !strings.Contains(out, "critical") {
		t.Error("state_mismatch should be logged with critical severity")
	}
}

func TestAuditorDisabled(t *testing.T) {
	logger, buf := newCaptureLogger()
	a := NewAuditor(logger, false)

	a.LogConnectStarted("client-1", "popup")
	if buf.Len() != 0 {
		t.Errorf("disabled auditor produced output: %q", buf.String())
	}
}

func TestAuditorNeverLogsRawToken(t *testing.T) {
	logger, buf := newCaptureLogger()
	a := NewAuditor(logger, true)

	const token = "super-secret-access-token"
	a.LogCodeExchanged("client-1", token)

	if strings.Contains(buf.String(), token) {
		t.Error("raw access token appeared in audit output")
	}
	if !strings.Contains(buf.String(), HashForLogging(token)) {
		t.Error("token hash missing from audit output")
	}
}

func TestHashForLogging(t *testing.T) {
	if HashForLogging("") != "<empty>" {
		t.Errorf("HashForLogging(\"\") = %q, want <empty>", HashForLogging(""))
	}
	h := HashForLogging("value")
	if len(h) != 16 {
		t.Errorf("hash length = %d, want 16", len(h))
	}
	if h == "value" {
		t.Error("hash equals input")
	}
}
