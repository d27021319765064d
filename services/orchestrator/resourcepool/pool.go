// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resourcepool tracks finite compute, memory, network and storage
// capacity and grants all-or-nothing allocations to concurrent callers.
//
// The pool is the only owner of its state. Allocation, commit and release
// all run under a single mutex so no two callers can interleave partial
// updates, and the invariant used + reserved <= total holds at every
// observation point.
package resourcepool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/google/uuid"
)

// ErrInsufficientResources is returned when the pool cannot satisfy every
// resource kind of a request. It is a recoverable, expected outcome; callers
// decide whether to shrink, retry later, or report failure.
var ErrInsufficientResources = errors.New("insufficient resources")

// ErrUnknownAllocation is returned when committing an allocation the pool
// did not grant.
var ErrUnknownAllocation = errors.New("unknown allocation")

// allocState tracks where an allocation's quantity currently lives.
type allocState int

const (
	allocReserved allocState = iota
	allocCommitted
)

// Allocation is a handle to a granted reservation. Pass it back to Commit
// when the job starts consuming resources and to Release when it finishes.
type Allocation struct {
	ID          string
	Requirement datatypes.ResourceRequirement
}

// Pool tracks capacity for every resource kind.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single mutex covers the whole
// pool so multi-kind updates are atomic.
type Pool struct {
	mu     sync.Mutex
	state  map[datatypes.ResourceKind]*datatypes.PoolSnapshot
	allocs map[string]*allocEntry
	logger *slog.Logger
}

type allocEntry struct {
	requirement datatypes.ResourceRequirement
	state       allocState
}

// New creates a pool with the given total capacity per kind. A nil logger
// falls back to slog.Default().
func New(capacity datatypes.ResourceRequirement, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	state := make(map[datatypes.ResourceKind]*datatypes.PoolSnapshot, 4)
	for _, kind := range datatypes.AllResourceKinds() {
		state[kind] = &datatypes.PoolSnapshot{Total: capacity.Get(kind)}
	}
	return &Pool{
		state:  state,
		allocs: make(map[string]*allocEntry),
		logger: logger,
	}
}

// Allocate reserves the requirement across every resource kind, or fails
// atomically with ErrInsufficientResources leaving the pool untouched.
func (p *Pool) Allocate(req datatypes.ResourceRequirement) (*Allocation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, kind := range datatypes.AllResourceKinds() {
		s := p.state[kind]
		if s.Total-s.Used-s.Reserved < req.Get(kind) {
			return nil, fmt.Errorf("%w: %s needs %.2f, available %.2f",
				ErrInsufficientResources, kind, req.Get(kind), s.Available())
		}
	}

	for _, kind := range datatypes.AllResourceKinds() {
		p.state[kind].Reserved += req.Get(kind)
	}

	alloc := &Allocation{ID: uuid.NewString(), Requirement: req}
	p.allocs[alloc.ID] = &allocEntry{requirement: req, state: allocReserved}

	p.logger.Debug("resources reserved",
		"allocation_id", alloc.ID,
		"cpu_cores", req.CPUCores,
		"memory_mb", req.MemoryMB)
	return alloc, nil
}

// CanSatisfy reports whether the requirement could be granted right now.
// This is the dry-run feasibility check used at plan-creation time; it
// reserves nothing.
func (p *Pool) CanSatisfy(req datatypes.ResourceRequirement) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, kind := range datatypes.AllResourceKinds() {
		s := p.state[kind]
		if s.Total-s.Used-s.Reserved < req.Get(kind) {
			return false
		}
	}
	return true
}

// Commit moves an allocation's quantity from reserved to used. Call it when
// the job actually starts consuming resources rather than merely being
// scheduled. Committing a released allocation is an error.
func (p *Pool) Commit(alloc *Allocation) error {
	if alloc == nil {
		return ErrUnknownAllocation
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.allocs[alloc.ID]
	if !ok || entry.state != allocReserved {
		return fmt.Errorf("%w: %s", ErrUnknownAllocation, alloc.ID)
	}

	for _, kind := range datatypes.AllResourceKinds() {
		p.state[kind].Reserved -= entry.requirement.Get(kind)
		p.state[kind].Used += entry.requirement.Get(kind)
	}
	entry.state = allocCommitted
	return nil
}

// Release returns an allocation's quantity to the pool. Releasing an
// already-released (or unknown) allocation is a no-op, not an error.
func (p *Pool) Release(alloc *Allocation) {
	if alloc == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.allocs[alloc.ID]
	if !ok {
		return
	}

	for _, kind := range datatypes.AllResourceKinds() {
		if entry.state == allocCommitted {
			p.state[kind].Used -= entry.requirement.Get(kind)
		} else {
			p.state[kind].Reserved -= entry.requirement.Get(kind)
		}
	}
	// Forget the handle entirely so long-lived pools do not accumulate
	// dead entries; a repeated Release is still a no-op via the !ok path.
	delete(p.allocs, alloc.ID)

	p.logger.Debug("resources released", "allocation_id", alloc.ID)
}

// Snapshot returns a copy of the current per-kind state.
func (p *Pool) Snapshot() map[datatypes.ResourceKind]datatypes.PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[datatypes.ResourceKind]datatypes.PoolSnapshot, len(p.state))
	for kind, s := range p.state {
		out[kind] = *s
	}
	return out
}

// Available returns the unreserved, unused capacity per kind.
func (p *Pool) Available() datatypes.ResourceRequirement {
	snap := p.Snapshot()
	return datatypes.ResourceRequirement{
		CPUCores:    snap[datatypes.ResourceCPU].Available(),
		MemoryMB:    snap[datatypes.ResourceMemory].Available(),
		NetworkMbps: snap[datatypes.ResourceNetwork].Available(),
		StorageGB:   snap[datatypes.ResourceStorage].Available(),
	}
}

// Utilization returns (used+reserved)/total per kind, 0 for empty pools.
func (p *Pool) Utilization() map[datatypes.ResourceKind]float64 {
	snap := p.Snapshot()
	out := make(map[datatypes.ResourceKind]float64, len(snap))
	for kind, s := range snap {
		out[kind] = s.Utilization()
	}
	return out
}
