package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigureWithOutput(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{
		Output: &buf,
		Level:  LevelInfo,
	})

	Info("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("log output = %q, want to contain %q", buf.String(), "test message")
	}
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{
		Output: &buf,
		JSON:   true,
		Level:  LevelInfo,
	})

	Info("json test")

	if !strings.Contains(buf.String(), "{") {
		t.Error("expected JSON output")
	}
}

func TestConfigureVerbose(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{
		Output:  &buf,
		Verbose: true,
	})

	Debug("debug message")

	if !strings.Contains(buf.String(), "debug message") {
		t.Error("debug should be visible with Verbose=true")
	}
}

func TestSetLevelFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{
		Output: &buf,
		Level:  LevelError,
	})

	Info("should not appear")
	if buf.Len() > 0 {
		t.Error("info should not appear at error level")
	}

	Error("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("error should appear")
	}
}

func TestOpenRunLog(t *testing.T) {
	var console bytes.Buffer
	Configure(Options{Output: &console, Level: LevelInfo})

	dir := t.TempDir()
	rl, err := OpenRunLog(dir, "abc12345", "adw_plan")
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}

	Debug("only in file")
	Info("in both")

	if err := rl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantPath := filepath.Join(dir, "abc12345", "adw_plan", ExecutionLogName)
	if rl.Path() != wantPath {
		t.Errorf("Path() = %q, want %q", rl.Path(), wantPath)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	file := string(data)

	if !strings.Contains(file, "only in file") || !strings.Contains(file, "in both") {
		t.Errorf("file log missing records: %q", file)
	}
	if !strings.Contains(file, "adw_id=abc12345") {
		t.Errorf("file log missing adw_id attr: %q", file)
	}
	if strings.Contains(console.String(), "only in file") {
		t.Error("debug record leaked to console at info level")
	}
	if !strings.Contains(console.String(), "in both") {
		t.Error("info record missing from console")
	}

	// After Close the global logger no longer writes to the file.
	Info("after close")
	data, _ = os.ReadFile(wantPath)
	if strings.Contains(string(data), "after close") {
		t.Error("record written after Close")
	}
}

func TestAttrHelpers(t *testing.T) {
	if attr := Err(errors.New("boom")); attr.Key != "error" {
		t.Errorf("Err().Key = %q, want %q", attr.Key, "error")
	}

	attr := ADWID("abc12345")
	if attr.Key != "adw_id" || attr.Value.String() != "abc12345" {
		t.Errorf("ADWID() = %v", attr)
	}

	attr = Stage("adw_review")
	if attr.Key != "stage" || attr.Value.String() != "adw_review" {
		t.Errorf("Stage() = %v", attr)
	}

	if got := Phase("built", "reviewed"); len(got) != 2 {
		t.Errorf("Phase() returned %d attrs, want 2", len(got))
	}
}

func TestLevelConstants(t *testing.T) {
	if LevelDebug != -4 {
		t.Errorf("LevelDebug = %d, want -4", LevelDebug)
	}
	if LevelError != 8 {
		t.Errorf("LevelError = %d, want 8", LevelError)
	}
}
