// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGovern/pkg/logging"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/config"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/service"
)

// runServe loads configuration, assembles the service, starts the
// config watcher, and blocks serving HTTP until the process exits.
func runServe(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: "govern",
		JSON:    logJSON,
		Quiet:   quiet,
	})
	defer logger.Close()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if modeFlag != "" {
		cfg.DefaultMode = modeFlag
	}

	logger.Info("starting govern server",
		"listen_addr", cfg.ListenAddr,
		"default_mode", cfg.DefaultMode,
		"store_path", cfg.StorePath,
		"tracing", cfg.OTLPEndpoint != "" && !noTracing,
	)

	svc, err := service.New(cfg, service.Options{
		EnableMetrics: true,
		EnableTracing: cfg.OTLPEndpoint != "" && !noTracing,
	}, nil, logger.Slog())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	// Hot-reload alert thresholds on config file edits. The watcher
	// stops when the process receives SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := svc.WatchConfig(ctx, configPath); err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	// Blocks until shutdown
	return svc.Run()
}
