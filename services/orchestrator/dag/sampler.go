// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"runtime"
	"sync"
	"time"
)

// RuntimeSampler reads process-level usage from the Go runtime. CPU usage
// is approximated from goroutine pressure against GOMAXPROCS; memory usage
// is heap-in-use as a fraction of heap obtained from the OS.
//
// The sampler rate-limits runtime.ReadMemStats, which stops the world, to
// at most once per 500ms and serves cached values in between.
type RuntimeSampler struct {
	mu        sync.Mutex
	lastRead  time.Time
	cachedCPU float64
	cachedMem float64
}

// NewRuntimeSampler returns a process-level usage sampler.
func NewRuntimeSampler() *RuntimeSampler {
	return &RuntimeSampler{}
}

// Sample returns cpu and memory usage ratios in [0,1].
func (s *RuntimeSampler) Sample() (cpuUsage, memoryUsage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastRead) < 500*time.Millisecond {
		return s.cachedCPU, s.cachedMem
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	cpu := float64(runtime.NumGoroutine()) / float64(runtime.GOMAXPROCS(0)*8)
	if cpu > 1 {
		cpu = 1
	}
	mem := 0.0
	if stats.HeapSys > 0 {
		mem = float64(stats.HeapInuse) / float64(stats.HeapSys)
	}

	s.lastRead = time.Now()
	s.cachedCPU = cpu
	s.cachedMem = mem
	return cpu, mem
}
