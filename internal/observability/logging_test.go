package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommandLog_RedactIndependence(t *testing.T) {
	entry := CommandLog{
		Command:    "echo",
		Parameters: []string{"me"},
		Actor:      "alice",
		Channel:    "root",
		Message:    "hello",
	}

	fileView := entry.Redact(RedactFlags{Command: true})
	consoleView := entry.Redact(RedactFlags{})

	if fileView.Command != Redacted {
		t.Errorf("file command = %q, want redacted", fileView.Command)
	}
	if consoleView.Command != "echo" {
		t.Errorf("console command = %q, want unredacted", consoleView.Command)
	}
	if entry.Command != "echo" {
		t.Error("Redact mutated the source projection")
	}
}

func TestSanitize(t *testing.T) {
	t.Run("image replaced", func(t *testing.T) {
		if got := Sanitize(`look <IMG src="x">`); got != MediaPlaceholder {
			t.Errorf("got %q", got)
		}
	})
	t.Run("hyperlink replaced", func(t *testing.T) {
		if got := Sanitize(`<a href="http://x">x</a>`); got != MediaPlaceholder {
			t.Errorf("got %q", got)
		}
	})
	t.Run("plain text untouched", func(t *testing.T) {
		if got := Sanitize("hello"); got != "hello" {
			t.Errorf("got %q", got)
		}
	})
}

func TestNewSinks_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSinks(SinkConfig{ConsoleOut: &buf, Level: "info"})
	if err != nil {
		t.Fatalf("NewSinks: %v", err)
	}
	defer s.Close()

	if s.File != nil {
		t.Error("file sink created without a path")
	}
	s.Console.Info("command executed", CommandLog{Command: "echo"}.Attrs()...)
	if !strings.Contains(buf.String(), "command=echo") {
		t.Errorf("console output missing field: %s", buf.String())
	}
}
