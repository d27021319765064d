// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8086", cfg.ListenAddr)
	assert.Equal(t, "autonomous", cfg.DefaultMode)
	assert.Equal(t, 16.0, cfg.Pool.CPUCores)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "govern.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
default_mode: supervised
pool:
  cpu_cores: 8
  memory_mb: 16384
alert_thresholds:
  cpu_utilization: 75
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "supervised", cfg.DefaultMode)
	assert.Equal(t, 8.0, cfg.Pool.CPUCores)
	assert.Equal(t, 75.0, cfg.AlertThresholds["cpu_utilization"])
	// Untouched sections keep their defaults.
	assert.Equal(t, 4, cfg.Engine.MaxParallelism)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "govern.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o644))
	t.Setenv("GOVERN_LISTEN_ADDR", ":7777")
	t.Setenv("GOVERN_POOL_CPU_CORES", "32")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.ListenAddr)
	assert.Equal(t, 32.0, cfg.Pool.CPUCores)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "govern.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_mode: yolo\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatcherReloadsThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "govern.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alert_thresholds:\n  cpu_utilization: 85\n"), 0o644))

	reloaded := make(chan map[string]float64, 1)
	w := NewWatcher(path, func(thresholds map[string]float64) {
		select {
		case reloaded <- thresholds:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("alert_thresholds:\n  cpu_utilization: 70\n"), 0o644))

	select {
	case thresholds := <-reloaded:
		assert.Equal(t, 70.0, thresholds["cpu_utilization"])
	case <-time.After(5 * time.Second):
		t.Fatal("threshold reload never fired")
	}

	cancel()
	<-done
}
