// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTOML = `
[[backend]]
id = "local-1"
name = "local-llama"
url = "http://127.0.0.1:8000"
type = "local-single-host"
priority = 2

[[backend]]
id = "cloud-1"
name = "cloud-gpt4"
url = "https://api.example.com"
type = "cloud-vendor"
priority = 1

[routing]
strategy = "scheduler"
max_retries = 2

[routing.aliases]
"gpt-4" = "llama3:70b"

[routing.fallbacks]
"gpt-4" = ["llama3:70b"]

[budget]
monthly_limit = 500.0
soft_limit_percent = 75
hard_limit_action = "local-only"
billing_cycle_start_day = 1

[quality]
error_rate_threshold = 0.4
ttft_penalty_threshold_ms = 800
metrics_interval_seconds = 15

[server]
port = 9090
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_ParsesFileOverDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Backends) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(cfg.Backends))
	}
	if cfg.Budget.SoftLimitPercent != 75 {
		t.Fatalf("expected soft_limit_percent 75, got %d", cfg.Budget.SoftLimitPercent)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Routing.Aliases["gpt-4"] != "llama3:70b" {
		t.Fatalf("expected alias resolved, got %v", cfg.Routing.Aliases)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Budget.SoftLimitPercent != 80 {
		t.Fatalf("expected default soft_limit_percent 80, got %d", cfg.Budget.SoftLimitPercent)
	}
}

func TestLoad_MalformedFileIsConfigError(t *testing.T) {
	path := writeTempConfig(t, "this is not valid [[[ toml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed TOML")
	}
	var cerr *ConfigError
	if !asConfigError(err, &cerr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	t.Setenv("NEXUS_SERVER_PORT", "7000")
	t.Setenv("NEXUS_BUDGET_HARD_LIMIT_ACTION", "reject")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Fatalf("expected env override port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Budget.HardLimitAction != "reject" {
		t.Fatalf("expected env override hard_limit_action reject, got %s", cfg.Budget.HardLimitAction)
	}
}

func TestApplyFlagOverrides_WinsOverFileAndEnv(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	t.Setenv("NEXUS_SERVER_PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ApplyFlagOverrides{Port: 6000}.Apply(cfg)
	if cfg.Server.Port != 6000 {
		t.Fatalf("expected flag override to win, got %d", cfg.Server.Port)
	}
}

func asConfigError(err error, target **ConfigError) bool {
	if cerr, ok := err.(*ConfigError); ok {
		*target = cerr
		return true
	}
	return false
}
