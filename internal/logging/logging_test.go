package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWritesPlainTextToBuffers(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, true)
	log.Info("index written", "entries", 3)

	out := buf.String()
	if !strings.Contains(out, "index written") || !strings.Contains(out, "entries=3") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-terminal output contains escape codes: %q", out)
	}
}

func TestNewHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Level(false), false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buf.String())
	}

	New(&buf, Level(true), false).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug record missing at debug level: %q", buf.String())
	}
}
