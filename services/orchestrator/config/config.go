// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads orchestrator service configuration from a YAML
// file with environment variable overrides, and supports hot-reloading
// the alert thresholds section while the service runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Schema
// =============================================================================

// PoolConfig sizes the shared resource pool.
type PoolConfig struct {
	CPUCores    float64 `yaml:"cpu_cores"`
	MemoryMB    float64 `yaml:"memory_mb"`
	NetworkMbps float64 `yaml:"network_mbps"`
	StorageGB   float64 `yaml:"storage_gb"`
}

// EngineConfig tunes workflow step execution.
type EngineConfig struct {
	MaxParallelism     int           `yaml:"max_parallelism"`
	DefaultTimeout     time.Duration `yaml:"default_timeout"`
	DefaultMaxAttempts int           `yaml:"default_max_attempts"`
	SampleInterval     time.Duration `yaml:"sample_interval"`
	CancelGrace        time.Duration `yaml:"cancel_grace"`
}

// OptimizerConfig tunes the adaptive optimizer.
type OptimizerConfig struct {
	HistoryCapacity int     `yaml:"history_capacity"`
	MinSamples      int     `yaml:"min_samples"`
	Window          int     `yaml:"window"`
	SafetyThreshold float64 `yaml:"safety_threshold"`
}

// InfluxConfig points at the optional time-series sink. An empty URL
// disables the sink.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Config is the full service configuration.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`

	// StorePath is the badger database directory. Empty runs in-memory.
	StorePath string `yaml:"store_path"`

	// DefaultMode is the execution mode used when requests omit one.
	DefaultMode string `yaml:"default_mode"`

	// MaxParallelWorkflows bounds concurrent workflows per plan.
	MaxParallelWorkflows int `yaml:"max_parallel_workflows"`

	// MaxRetainedPlans bounds terminal plans kept queryable in memory;
	// older terminal plans are served from the store only.
	MaxRetainedPlans int `yaml:"max_retained_plans"`

	// IngestRatePerSecond bounds snapshot ingestion. Zero disables limiting.
	IngestRatePerSecond float64 `yaml:"ingest_rate_per_second"`

	// AlertThresholds maps metric name to its alert threshold. This
	// section hot-reloads; see Watch.
	AlertThresholds map[string]float64 `yaml:"alert_thresholds"`

	Pool      PoolConfig      `yaml:"pool"`
	Engine    EngineConfig    `yaml:"engine"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Influx    InfluxConfig    `yaml:"influx"`

	// OTLPEndpoint is the OpenTelemetry collector address. Empty disables
	// trace export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns production defaults, used when no config file exists.
func Default() Config {
	return Config{
		ListenAddr:           ":8086",
		DefaultMode:          "autonomous",
		MaxParallelWorkflows: 4,
		MaxRetainedPlans:     256,
		IngestRatePerSecond:  500,
		Pool: PoolConfig{
			CPUCores:    16,
			MemoryMB:    32 * 1024,
			NetworkMbps: 1000,
			StorageGB:   500,
		},
		Engine: EngineConfig{
			MaxParallelism:     4,
			DefaultTimeout:     30 * time.Second,
			DefaultMaxAttempts: 3,
			SampleInterval:     time.Second,
			CancelGrace:        5 * time.Second,
		},
		Optimizer: OptimizerConfig{
			HistoryCapacity: 1000,
			MinSamples:      100,
			Window:          10,
			SafetyThreshold: 0.8,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the YAML file at path, overlays it on the defaults, then
// applies environment overrides. A missing file is not an error: defaults
// plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays GOVERN_* environment variables. Only the settings an
// operator plausibly overrides per deployment are exposed this way.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GOVERN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("GOVERN_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("GOVERN_DEFAULT_MODE"); v != "" {
		cfg.DefaultMode = v
	}
	if v := os.Getenv("GOVERN_INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("GOVERN_INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("GOVERN_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("GOVERN_MAX_PARALLEL_WORKFLOWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxParallelWorkflows = n
		}
	}
	if v := os.Getenv("GOVERN_POOL_CPU_CORES"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Pool.CPUCores = f
		}
	}
}

func (c Config) validate() error {
	if c.Pool.CPUCores <= 0 || c.Pool.MemoryMB <= 0 {
		return fmt.Errorf("pool must have positive cpu and memory capacity")
	}
	if c.MaxParallelWorkflows <= 0 {
		return fmt.Errorf("max_parallel_workflows must be positive")
	}
	switch c.DefaultMode {
	case "autonomous", "supervised", "hybrid", "manual":
	default:
		return fmt.Errorf("unknown default_mode %q", c.DefaultMode)
	}
	return nil
}
