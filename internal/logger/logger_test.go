package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/config"
)

func TestJSONFormatCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LogConfig{Level: "debug", Format: "json", Service: "aura-test"}, &buf)
	log.Debug().Str("component", "x").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "aura-test" || line["message"] != "hello" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("loud"); got != zerolog.InfoLevel {
		t.Fatalf("expected info, got %v", got)
	}
	if got := parseLevel("WARN"); got != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %v", got)
	}
}
