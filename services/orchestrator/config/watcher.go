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
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ThresholdHandler receives the new alert thresholds after a reload.
type ThresholdHandler func(thresholds map[string]float64)

// Watcher hot-reloads the alert_thresholds section when the config file
// changes on disk. Other sections require a restart; thresholds are the
// one setting operators tune during an incident.
//
// # Thread Safety
//
// The handler is called from a single goroutine.
type Watcher struct {
	path     string
	handler  ThresholdHandler
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a config watcher. A nil logger falls back to
// slog.Default().
func NewWatcher(path string, handler ThresholdHandler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		handler:  handler,
		debounce: 200 * time.Millisecond,
		logger:   logger,
	}
}

// Watch blocks until ctx is cancelled, invoking the handler after each
// debounced change to the config file. Editors that replace the file
// (rename-over) are handled by watching the parent directory.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-fire:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous thresholds",
			"path", w.path, "error", err)
		return
	}
	if len(cfg.AlertThresholds) == 0 {
		return
	}
	w.logger.Info("alert thresholds reloaded", "path", w.path,
		"metrics", len(cfg.AlertThresholds))
	w.handler(cfg.AlertThresholds)
}
