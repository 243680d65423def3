package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"briefline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if cfg == nil {
		t.Fatalf("default config failed to parse")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Limits.TechnicalAttempts != 2 || cfg.Limits.QualityRetries != 2 || cfg.Limits.ClarificationRounds != 5 {
		t.Fatalf("unexpected default limits: %+v", cfg.Limits)
	}
	if cfg.OracleTimeout() != 60*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.OracleTimeout())
	}
}

func TestFromYAMLRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"not yaml", ":\n  - ["},
		{"missing base_url", "oracle:\n  model: m\n  timeout_seconds: 10\nlimits:\n  technical_attempts: 2\n  quality_retries: 2\n  clarification_rounds: 5\n"},
		{"missing model", "oracle:\n  base_url: http://x\n  timeout_seconds: 10\nlimits:\n  technical_attempts: 2\n  quality_retries: 2\n  clarification_rounds: 5\n"},
		{"zero timeout", "oracle:\n  base_url: http://x\n  model: m\nlimits:\n  technical_attempts: 2\n  quality_retries: 2\n  clarification_rounds: 5\n"},
		{"zero attempts", "oracle:\n  base_url: http://x\n  model: m\n  timeout_seconds: 10\nlimits:\n  technical_attempts: 0\n  quality_retries: 2\n  clarification_rounds: 5\n"},
		{"negative quality retries", "oracle:\n  base_url: http://x\n  model: m\n  timeout_seconds: 10\nlimits:\n  technical_attempts: 2\n  quality_retries: -1\n  clarification_rounds: 5\n"},
	}
	for _, tc := range cases {
		if _, err := config.FromYAML([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "briefline.yml"), []byte(config.GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.Model == "" {
		t.Fatalf("empty model after load")
	}
}

func TestLoadMissingFileMentionsInit(t *testing.T) {
	_, err := config.Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "bl init") {
		t.Fatalf("expected hint to run bl init, got %v", err)
	}
}
