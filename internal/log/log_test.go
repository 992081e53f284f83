package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogger_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.Debug("hidden", "k", 1)
	l.Info("shown", "k", 2)
	l.Error("failed", errors.New("boom"), "id", "e-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be suppressed at INFO: %q", out)
	}
	if !strings.Contains(out, "[INFO] shown k=2") {
		t.Fatalf("missing info line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] failed err=boom id=e-1") {
		t.Fatalf("missing error line: %q", out)
	}
}

func TestLogger_QuotesValuesWithSpaces(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, LevelDebug)
	l.Debug("event", "title", "Linear Algebra", "room", "")

	out := buf.String()
	if !strings.Contains(out, `title="Linear Algebra"`) {
		t.Fatalf("expected quoted title: %q", out)
	}
	if !strings.Contains(out, `room=""`) {
		t.Fatalf("expected empty value marker: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Level
	}{
		{in: "debug", want: LevelDebug},
		{in: " ERROR ", want: LevelError},
		{in: "info", want: LevelInfo},
		{in: "verbose", want: LevelInfo},
		{in: "", want: LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
