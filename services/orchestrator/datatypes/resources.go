// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model for the scan-rule
// orchestration core: resource requirements, scan requests, execution
// plans, workflows, performance snapshots, and alerts.
//
// Types in this package are plain data carriers. They hold no locks and
// perform no I/O; ownership and mutation rules are enforced by the
// components that own them (resourcepool, dag, orchestrator, optimizer).
package datatypes

import (
	"errors"
	"fmt"
)

// =============================================================================
// Resource Kinds
// =============================================================================

// ResourceKind identifies one of the finite resource pools tracked by the
// orchestration core.
type ResourceKind string

const (
	// ResourceCPU is compute capacity, measured in cores.
	ResourceCPU ResourceKind = "cpu_cores"

	// ResourceMemory is memory capacity, measured in megabytes.
	ResourceMemory ResourceKind = "memory_mb"

	// ResourceNetwork is network capacity, measured in megabits per second.
	ResourceNetwork ResourceKind = "network_mbps"

	// ResourceStorage is scratch storage capacity, measured in gigabytes.
	ResourceStorage ResourceKind = "storage_gb"
)

// AllResourceKinds returns every tracked resource kind in a stable order.
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{ResourceCPU, ResourceMemory, ResourceNetwork, ResourceStorage}
}

// ErrNegativeRequirement is returned when a resource requirement contains a
// negative quantity.
var ErrNegativeRequirement = errors.New("resource requirement must be non-negative")

// =============================================================================
// Resource Requirement
// =============================================================================

// ResourceRequirement describes a quantity of each resource kind. It is used
// both as a requested amount (what a workflow asks for) and as an allocated
// amount (what the pool granted).
//
// # Thread Safety
//
// ResourceRequirement is a value type; copies are independent.
type ResourceRequirement struct {
	CPUCores    float64 `json:"cpu_cores"`
	MemoryMB    float64 `json:"memory_mb"`
	NetworkMbps float64 `json:"network_mbps"`
	StorageGB   float64 `json:"storage_gb"`
}

// Validate returns ErrNegativeRequirement if any quantity is negative.
func (r ResourceRequirement) Validate() error {
	for _, kind := range AllResourceKinds() {
		if r.Get(kind) < 0 {
			return fmt.Errorf("%w: %s = %f", ErrNegativeRequirement, kind, r.Get(kind))
		}
	}
	return nil
}

// Get returns the quantity for a resource kind. Unknown kinds return 0.
func (r ResourceRequirement) Get(kind ResourceKind) float64 {
	switch kind {
	case ResourceCPU:
		return r.CPUCores
	case ResourceMemory:
		return r.MemoryMB
	case ResourceNetwork:
		return r.NetworkMbps
	case ResourceStorage:
		return r.StorageGB
	}
	return 0
}

// Add returns the element-wise sum of two requirements.
func (r ResourceRequirement) Add(other ResourceRequirement) ResourceRequirement {
	return ResourceRequirement{
		CPUCores:    r.CPUCores + other.CPUCores,
		MemoryMB:    r.MemoryMB + other.MemoryMB,
		NetworkMbps: r.NetworkMbps + other.NetworkMbps,
		StorageGB:   r.StorageGB + other.StorageGB,
	}
}

// IsZero reports whether every quantity is zero.
func (r ResourceRequirement) IsZero() bool {
	return r.CPUCores == 0 && r.MemoryMB == 0 && r.NetworkMbps == 0 && r.StorageGB == 0
}

// PoolSnapshot is a point-in-time view of one resource kind inside a pool.
// Invariant: Used + Reserved <= Total.
type PoolSnapshot struct {
	Total    float64 `json:"total"`
	Used     float64 `json:"used"`
	Reserved float64 `json:"reserved"`
}

// Available returns the capacity not yet used or reserved.
func (p PoolSnapshot) Available() float64 {
	return p.Total - p.Used - p.Reserved
}

// Utilization returns (used+reserved)/total, or 0 for an empty pool.
func (p PoolSnapshot) Utilization() float64 {
	if p.Total <= 0 {
		return 0
	}
	return (p.Used + p.Reserved) / p.Total
}
