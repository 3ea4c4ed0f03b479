package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSetupWritesRotatedFile(t *testing.T) {
	previous := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(previous) })

	path := filepath.Join(t.TempDir(), "magasin.log")
	logger, err := Setup("production", path)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if zap.L() != logger {
		t.Fatalf("expected logger installed as global")
	}

	zap.L().Info("sale recorded", zap.String("sale_id", "sale-1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log line in %s", path)
	}
}

func TestSetupDevelopmentWithoutFile(t *testing.T) {
	previous := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(previous) })

	logger, err := Setup("development", "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected development logger to enable debug")
	}
}
