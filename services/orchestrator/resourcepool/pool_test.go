// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resourcepool

import (
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapacity() datatypes.ResourceRequirement {
	return datatypes.ResourceRequirement{
		CPUCores:    16,
		MemoryMB:    32768,
		NetworkMbps: 1000,
		StorageGB:   500,
	}
}

// checkInvariant asserts used + reserved <= total for every kind.
func checkInvariant(t *testing.T, p *Pool) {
	t.Helper()
	for kind, s := range p.Snapshot() {
		assert.LessOrEqual(t, s.Used+s.Reserved, s.Total,
			"invariant violated for %s", kind)
		assert.GreaterOrEqual(t, s.Used, 0.0, "negative used for %s", kind)
		assert.GreaterOrEqual(t, s.Reserved, 0.0, "negative reserved for %s", kind)
	}
}

func TestPool_AllocateCommitRelease(t *testing.T) {
	pool := New(testCapacity(), nil)
	req := datatypes.ResourceRequirement{CPUCores: 4, MemoryMB: 8192, NetworkMbps: 100, StorageGB: 50}

	alloc, err := pool.Allocate(req)
	require.NoError(t, err)
	checkInvariant(t, pool)

	snap := pool.Snapshot()
	assert.Equal(t, 4.0, snap[datatypes.ResourceCPU].Reserved)
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Used)

	require.NoError(t, pool.Commit(alloc))
	snap = pool.Snapshot()
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Reserved)
	assert.Equal(t, 4.0, snap[datatypes.ResourceCPU].Used)
	checkInvariant(t, pool)

	pool.Release(alloc)
	snap = pool.Snapshot()
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Used)
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Reserved)
	checkInvariant(t, pool)
}

func TestPool_AllocateAtomicFailure(t *testing.T) {
	pool := New(testCapacity(), nil)

	// Memory exceeds capacity; CPU fits. No partial reservation may persist.
	req := datatypes.ResourceRequirement{CPUCores: 2, MemoryMB: 99999}
	_, err := pool.Allocate(req)
	require.ErrorIs(t, err, ErrInsufficientResources)

	for _, s := range pool.Snapshot() {
		assert.Equal(t, 0.0, s.Used)
		assert.Equal(t, 0.0, s.Reserved)
	}
}

func TestPool_ReleaseIdempotent(t *testing.T) {
	pool := New(testCapacity(), nil)
	req := datatypes.ResourceRequirement{CPUCores: 4, MemoryMB: 1024}

	alloc, err := pool.Allocate(req)
	require.NoError(t, err)
	require.NoError(t, pool.Commit(alloc))

	pool.Release(alloc)
	pool.Release(alloc) // second release is a no-op
	pool.Release(nil)

	snap := pool.Snapshot()
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Used)
	assert.Equal(t, 0.0, snap[datatypes.ResourceMemory].Used)
	checkInvariant(t, pool)
}

func TestPool_ReleaseWithoutCommit(t *testing.T) {
	pool := New(testCapacity(), nil)
	alloc, err := pool.Allocate(datatypes.ResourceRequirement{CPUCores: 8})
	require.NoError(t, err)

	pool.Release(alloc)
	snap := pool.Snapshot()
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Reserved)

	// Committing after release must fail; state must stay clean.
	assert.ErrorIs(t, pool.Commit(alloc), ErrUnknownAllocation)
	checkInvariant(t, pool)
}

func TestPool_NegativeRequirementRejected(t *testing.T) {
	pool := New(testCapacity(), nil)
	_, err := pool.Allocate(datatypes.ResourceRequirement{CPUCores: -1})
	assert.ErrorIs(t, err, datatypes.ErrNegativeRequirement)
}

func TestPool_CanSatisfy(t *testing.T) {
	pool := New(testCapacity(), nil)
	assert.True(t, pool.CanSatisfy(datatypes.ResourceRequirement{CPUCores: 16}))
	assert.False(t, pool.CanSatisfy(datatypes.ResourceRequirement{CPUCores: 17}))

	_, err := pool.Allocate(datatypes.ResourceRequirement{CPUCores: 10})
	require.NoError(t, err)
	assert.False(t, pool.CanSatisfy(datatypes.ResourceRequirement{CPUCores: 8}))
	assert.True(t, pool.CanSatisfy(datatypes.ResourceRequirement{CPUCores: 6}))
}

func TestPool_ConcurrentAllocators(t *testing.T) {
	pool := New(datatypes.ResourceRequirement{CPUCores: 100, MemoryMB: 100000, NetworkMbps: 10000, StorageGB: 10000}, nil)
	req := datatypes.ResourceRequirement{CPUCores: 1, MemoryMB: 100, NetworkMbps: 10, StorageGB: 10}

	var wg sync.WaitGroup
	granted := make(chan *Allocation, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if alloc, err := pool.Allocate(req); err == nil {
				_ = pool.Commit(alloc)
				granted <- alloc
			}
		}()
	}
	wg.Wait()
	close(granted)

	// Exactly 100 of 200 one-core grants fit in a 100-core pool.
	count := 0
	for alloc := range granted {
		count++
		pool.Release(alloc)
	}
	assert.Equal(t, 100, count)
	checkInvariant(t, pool)

	snap := pool.Snapshot()
	assert.Equal(t, 0.0, snap[datatypes.ResourceCPU].Used)
}

func TestPool_AvailableAndUtilization(t *testing.T) {
	pool := New(testCapacity(), nil)
	_, err := pool.Allocate(datatypes.ResourceRequirement{CPUCores: 8, MemoryMB: 16384})
	require.NoError(t, err)

	avail := pool.Available()
	assert.Equal(t, 8.0, avail.CPUCores)
	assert.Equal(t, 16384.0, avail.MemoryMB)

	util := pool.Utilization()
	assert.InDelta(t, 0.5, util[datatypes.ResourceCPU], 1e-9)
	assert.InDelta(t, 0.0, util[datatypes.ResourceStorage], 1e-9)
}

func TestPool_ReleaseForgetsAllocationHandles(t *testing.T) {
	pool := New(testCapacity(), nil)

	for i := 0; i < 100; i++ {
		alloc, err := pool.Allocate(datatypes.ResourceRequirement{CPUCores: 2, MemoryMB: 1024})
		require.NoError(t, err)
		if i%2 == 0 {
			require.NoError(t, pool.Commit(alloc))
		}
		pool.Release(alloc)
		pool.Release(alloc) // repeat release stays a no-op
	}

	// A long-running pool must not accumulate dead handles.
	pool.mu.Lock()
	remaining := len(pool.allocs)
	pool.mu.Unlock()
	assert.Equal(t, 0, remaining)
	checkInvariant(t, pool)
}
