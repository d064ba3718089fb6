package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelNormal, &buf)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Warn("shown %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "[DBG]") {
		t.Errorf("debug emitted at normal level: %q", out)
	}
	for _, prefix := range []string{"[INF]", "[WRN]", "[ERR]"} {
		if !strings.Contains(out, prefix) {
			t.Errorf("missing %s stream in output: %q", prefix, out)
		}
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelOff, &buf)

	l.Error("swallowed")
	if buf.Len() != 0 {
		t.Fatalf("output at LevelOff: %q", buf.String())
	}

	l.SetLevel(LevelVerbose)
	if got := l.GetLevel(); got != LevelVerbose {
		t.Fatalf("GetLevel() = %d, want verbose", got)
	}
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug not emitted after SetLevel: %q", buf.String())
	}
}
