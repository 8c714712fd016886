package executor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLogger_WritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "executor-debug.log")

	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger() error = %v", err)
	}
	logger.Log("wave %d settled", 3)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "wave 3 settled") {
		t.Errorf("log content = %q, missing message", content)
	}
}

func TestDebugLogger_NopIsSafe(t *testing.T) {
	logger := NopLogger()
	logger.Log("ignored")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	var nilLogger *DebugLogger
	nilLogger.Log("also ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
