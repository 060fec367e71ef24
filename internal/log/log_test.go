package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var out, errOut bytes.Buffer
	oldOut, oldErr := stdout, stderr
	oldDebug, oldTimestamps := debugMode, timestamps
	SetOutput(&out, &errOut)
	t.Cleanup(func() {
		SetOutput(oldOut, oldErr)
		SetDebugMode(oldDebug)
		SetTimestamps(oldTimestamps)
	})
	return &out, &errOut
}

func TestSetDebugMode(t *testing.T) {
	captureOutput(t)

	tests := []struct {
		name    string
		enabled bool
	}{
		{name: "enable debug", enabled: true},
		{name: "disable debug", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetDebugMode(tt.enabled)
			if IsDebug() != tt.enabled {
				t.Errorf("SetDebugMode(%v) did not set debugMode correctly", tt.enabled)
			}
		})
	}
}

func TestDebugOutput(t *testing.T) {
	out, _ := captureOutput(t)

	SetDebugMode(true)
	Debug("test %s", "message")

	output := out.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Debug() did not output expected message, got: %s", output)
	}
	if !strings.Contains(output, "[DEBUG]") {
		t.Errorf("Debug() did not include [DEBUG] prefix, got: %s", output)
	}
}

func TestDebugDisabled(t *testing.T) {
	out, _ := captureOutput(t)

	SetDebugMode(false)
	Debug("test message")

	if out.String() != "" {
		t.Errorf("Debug() should not output when disabled, got: %s", out.String())
	}
}

func TestErrorGoesToStderr(t *testing.T) {
	out, errOut := captureOutput(t)

	Error("pump failed: %v", "stuck")

	if out.Len() != 0 {
		t.Errorf("Error() wrote to stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "pump failed: stuck") {
		t.Errorf("Error() output = %q, want message", errOut.String())
	}
}

func TestWarnAndTimestamps(t *testing.T) {
	out, _ := captureOutput(t)

	SetTimestamps(true)
	Warn("preconditions not met: %s", "tank low")

	line := strings.TrimSpace(out.String())
	if !strings.Contains(line, "preconditions not met: tank low") {
		t.Fatalf("Warn() output = %q", line)
	}

	stamp := strings.SplitN(line, " ", 2)[0]
	if _, err := time.Parse(time.RFC3339, stamp); err != nil {
		t.Errorf("timestamp prefix %q is not RFC3339: %v", stamp, err)
	}
}
