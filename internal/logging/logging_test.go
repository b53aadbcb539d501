// internal/logging/logging_test.go
package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/coffeye/xpod/internal/config"
)

func TestNew_LevelFallback(t *testing.T) {
	log, c, err := New(config.LogConfig{Level: "chatty"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", log.GetLevel())
	}
}

func TestNew_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opc.log")

	log, c, err := New(config.LogConfig{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.WithField("device", "roof").Debug("probe")
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("not json: %q", data)
	}
	if entry["device"] != "roof" || entry["msg"] != "probe" || entry["level"] != "debug" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNew_FileError(t *testing.T) {
	_, _, err := New(config.LogConfig{
		Output:   "file",
		FilePath: filepath.Join(t.TempDir(), "missing", "opc.log"),
	})
	if err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}
