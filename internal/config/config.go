// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the Nexus configuration surface from spec §6: a
// TOML file, overridden by NEXUS_-prefixed environment variables, in turn
// overridden by CLI flags. Grounded on the teacher lineage's
// LoadRoutingConfigFromEnv (orchestrator/llm/routing_strategy.go): read
// os.Getenv directly, log what was read, rather than a reflection-based
// env-binding library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"nexus/internal/domain"
	"nexus/internal/logger"
)

// ConfigError wraps a fatal configuration problem: the offending key and
// the underlying cause. Distinct from a bare fmt.Errorf string per
// SPEC_FULL.md §2A — callers can unwrap to the original cause.
type ConfigError struct {
	Key   string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// BackendSpec is one [[backend]] TOML table.
type BackendSpec struct {
	ID             string             `toml:"id"`
	Name           string             `toml:"name"`
	URL            string             `toml:"url"`
	Type           string             `toml:"type"`
	Priority       int                `toml:"priority"`
	APIKeyEnv      string             `toml:"api_key_env"`
	Zone           string             `toml:"zone"`
	Tier           int                `toml:"tier"`
	CapabilityTier CapabilityTierSpec `toml:"capability_tier"`
	Models         []ModelSpec        `toml:"models"`
}

// CapabilityTierSpec is the `capability_tier.*` sub-table.
type CapabilityTierSpec struct {
	Reasoning      int `toml:"reasoning"`
	Coding         int `toml:"coding"`
	ContextWindow  int `toml:"context_window"`
	Vision         int `toml:"vision"`
	Tools          int `toml:"tools"`
}

// ModelSpec is one model a backend declares support for.
type ModelSpec struct {
	ID               string `toml:"id"`
	ContextLength    int    `toml:"context_length"`
	SupportsVision   bool   `toml:"supports_vision"`
	SupportsTools    bool   `toml:"supports_tools"`
	SupportsJSONMode bool   `toml:"supports_json_mode"`
	Provider         string `toml:"provider"`
}

// PolicySpec is one `[routing.policies.<pattern>]` entry.
type PolicySpec struct {
	Privacy          string `toml:"privacy"`
	MinTier          int    `toml:"min_tier"`
	OverflowMode     string `toml:"overflow_mode"`
	MinReasoning     int    `toml:"min_reasoning"`
	MinCoding        int    `toml:"min_coding"`
	MinContextWindow int    `toml:"min_context_window"`
	VisionRequired   bool   `toml:"vision_required"`
	ToolsRequired    bool   `toml:"tools_required"`
}

// RoutingSpec is the `[routing]` table.
type RoutingSpec struct {
	Strategy   string                  `toml:"strategy"`
	MaxRetries int                     `toml:"max_retries"`
	Aliases    map[string]string       `toml:"aliases"`
	Fallbacks  map[string][]string     `toml:"fallbacks"`
	Policies   map[string]PolicySpec   `toml:"policies"`
}

// BudgetSpec is the `[budget]` table.
type BudgetSpec struct {
	MonthlyLimit         float64 `toml:"monthly_limit"`
	SoftLimitPercent     int     `toml:"soft_limit_percent"`
	HardLimitAction      string  `toml:"hard_limit_action"`
	BillingCycleStartDay int     `toml:"billing_cycle_start_day"`
}

// QualitySpec is the `[quality]` table.
type QualitySpec struct {
	ErrorRateThreshold     float64 `toml:"error_rate_threshold"`
	TTFTPenaltyThresholdMs float64 `toml:"ttft_penalty_threshold_ms"`
	MetricsIntervalSeconds int     `toml:"metrics_interval_seconds"`
}

// ServerSpec is the `[server]` table: the one ambient addition TOML
// schema needs beyond spec.md §6's recognized keys, so the HTTP surface
// has a port to bind. Grounded on the teacher's PORT env var convention.
type ServerSpec struct {
	Port int `toml:"port"`
}

// Config is the fully decoded, override-applied configuration.
type Config struct {
	Backends []BackendSpec `toml:"backend"`
	Routing  RoutingSpec   `toml:"routing"`
	Budget   BudgetSpec    `toml:"budget"`
	Quality  QualitySpec   `toml:"quality"`
	Server   ServerSpec    `toml:"server"`
}

// Defaults returns the built-in baseline, the lowest-precedence layer.
func Defaults() Config {
	return Config{
		Routing: RoutingSpec{
			Strategy:   "scheduler",
			MaxRetries: 1,
			Aliases:    map[string]string{},
			Fallbacks:  map[string][]string{},
			Policies:   map[string]PolicySpec{},
		},
		Budget: BudgetSpec{
			SoftLimitPercent:     80,
			HardLimitAction:      string(domain.HardLimitLocalOnly),
			BillingCycleStartDay: 1,
		},
		Quality: QualitySpec{
			ErrorRateThreshold:     0.5,
			TTFTPenaltyThresholdMs: 1000,
			MetricsIntervalSeconds: 30,
		},
		Server: ServerSpec{Port: 8085},
	}
}

// Load reads path, merges it over Defaults(), applies NEXUS_ environment
// overrides, and returns the result. A missing file is not fatal — the
// caller gets Defaults()-plus-env; a malformed file is a *ConfigError.
func Load(path string) (*Config, error) {
	log := logger.New("config")
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, &ConfigError{Key: path, Cause: err}
			}
			log.Warn("", "", "config file not found, using defaults plus env", map[string]interface{}{"path": path})
		} else {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, &ConfigError{Key: path, Cause: err}
			}
			log.Info("", "", "loaded config file", map[string]interface{}{"path": path, "backends": len(cfg.Backends)})
		}
	}

	applyEnvOverrides(&cfg, log)
	return &cfg, nil
}

// applyEnvOverrides reads the small set of NEXUS_-prefixed environment
// variables spec §6 calls for directly via os.Getenv, logging what was
// read, matching the teacher's own env-loading idiom rather than a
// reflection-based binder.
func applyEnvOverrides(cfg *Config, log *logger.Logger) {
	if v := os.Getenv("NEXUS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
			log.Info("", "", "env override", map[string]interface{}{"key": "NEXUS_SERVER_PORT", "value": port})
		} else {
			log.Warn("", "", "invalid NEXUS_SERVER_PORT, ignoring", map[string]interface{}{"value": v})
		}
	}
	if v := os.Getenv("NEXUS_BUDGET_MONTHLY_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.MonthlyLimit = limit
			log.Info("", "", "env override", map[string]interface{}{"key": "NEXUS_BUDGET_MONTHLY_LIMIT", "value": limit})
		} else {
			log.Warn("", "", "invalid NEXUS_BUDGET_MONTHLY_LIMIT, ignoring", map[string]interface{}{"value": v})
		}
	}
	if v := os.Getenv("NEXUS_BUDGET_HARD_LIMIT_ACTION"); v != "" {
		cfg.Budget.HardLimitAction = v
		log.Info("", "", "env override", map[string]interface{}{"key": "NEXUS_BUDGET_HARD_LIMIT_ACTION", "value": v})
	}
	if v := os.Getenv("NEXUS_QUALITY_ERROR_RATE_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Quality.ErrorRateThreshold = threshold
			log.Info("", "", "env override", map[string]interface{}{"key": "NEXUS_QUALITY_ERROR_RATE_THRESHOLD", "value": threshold})
		} else {
			log.Warn("", "", "invalid NEXUS_QUALITY_ERROR_RATE_THRESHOLD, ignoring", map[string]interface{}{"value": v})
		}
	}
	if v := os.Getenv("NEXUS_ROUTING_ALIASES"); v != "" {
		for _, pair := range strings.Split(v, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				continue
			}
			if cfg.Routing.Aliases == nil {
				cfg.Routing.Aliases = map[string]string{}
			}
			cfg.Routing.Aliases[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
		log.Info("", "", "env override", map[string]interface{}{"key": "NEXUS_ROUTING_ALIASES", "value": v})
	}
}

// ApplyFlagOverrides is the highest-precedence layer: explicit CLI flags
// parsed by the caller (cmd/nexus), applied only when set (non-zero/
// non-empty), matching spec §6's CLI > env > file > defaults order.
type ApplyFlagOverrides struct {
	Port            int
	ConfigPath      string
	MonthlyLimit    float64
	HardLimitAction string
}

// Apply merges non-zero fields of o into cfg.
func (o ApplyFlagOverrides) Apply(cfg *Config) {
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.MonthlyLimit != 0 {
		cfg.Budget.MonthlyLimit = o.MonthlyLimit
	}
	if o.HardLimitAction != "" {
		cfg.Budget.HardLimitAction = o.HardLimitAction
	}
}
