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
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// --- Global Command Variables ---
var (
	configPath string
	listenAddr string
	modeFlag   string
	logLevel   string
	logDir     string
	logJSON    bool
	quiet      bool
	noTracing  bool

	rootCmd = &cobra.Command{
		Use:   "govern",
		Short: "Scan orchestration server for the Aleutian governance platform",
		Long: `Govern plans, schedules, and executes data governance scan
workflows against pooled compute resources. It ingests scan
performance telemetry, raises threshold alerts, and adaptively
tunes scan parameters from observed history.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration HTTP server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the govern version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("govern %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "govern.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for JSON log files (empty disables file logging)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs on stderr")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress stderr logging")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Override the configured listen address")
	serveCmd.Flags().StringVar(&modeFlag, "mode", "", "Override the default execution mode (autonomous, supervised, hybrid, manual)")
	serveCmd.Flags().BoolVar(&noTracing, "no-tracing", false, "Disable OTLP tracing even when an endpoint is configured")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
