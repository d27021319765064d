// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command govern starts the AleutianGovern scan orchestration server.
//
// The server plans and executes data governance scan workflows,
// ingests performance telemetry, raises threshold alerts, and tunes
// scan parameters from observed history.
//
// # Environment Variables
//
// All config file settings can be overridden via GOVERN_* environment
// variables (see services/orchestrator/config):
//
//   - GOVERN_LISTEN_ADDR: HTTP bind address (default: :8086)
//   - GOVERN_STORE_PATH: Badger persistence directory (empty = in-memory)
//   - GOVERN_DEFAULT_MODE: autonomous, supervised, hybrid, or manual
//   - GOVERN_INFLUX_URL / GOVERN_INFLUX_TOKEN: telemetry sink (optional)
//   - GOVERN_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o govern ./cmd/govern
//
//	# Run with defaults
//	./govern serve
//
//	# Run with a config file and debug logging
//	./govern serve --config govern.yaml --log-level debug
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
