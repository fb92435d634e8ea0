package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/i474232898/meteoviz/internal/config"
)

func TestProdLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, &config.AppConfig{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "meteoviz")

	log.Debug("hidden")
	log.Info("order ready", "order_id", "761044914939")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one record, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["app"] != "meteoviz" || rec["version"] != "1.2.3" || rec["env"] != "prod" {
		t.Fatalf("missing base attributes: %v", rec)
	}
	if rec["order_id"] != "761044914939" {
		t.Fatalf("missing record attribute: %v", rec)
	}
}

func TestDevLoggerIsText(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, &config.AppConfig{AppEnv: "dev", LogLevel: slog.LevelInfo}, "dev", "meteoviz")
	log.Info("hello")

	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("unexpected dev output %q", buf.String())
	}
}
