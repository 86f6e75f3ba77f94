// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package placement decides how a chunk's blocks converge toward the
// configured replica target: which blocks are stale and must go, and which
// fragments need new blocks and from which source to replicate them.
//
// The analyzer is a pure function over fully hydrated inputs; it performs no
// I/O and must not suspend.
package placement

import (
	"sort"
	"time"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

// SrvMode is a node's administrative service mode.
type SrvMode string

const (
	// SrvModeNone is a normally serving node.
	SrvModeNone SrvMode = ""
	// SrvModeDecommissioning drains a node; its blocks stay readable.
	SrvModeDecommissioning SrvMode = "decommissioning"
	// SrvModeDisabled excludes a node entirely.
	SrvModeDisabled SrvMode = "disabled"
)

// Health of a fragment or chunk.
type Health string

const (
	// Healthy means the fragment holds the full replica target.
	Healthy Health = "healthy"
	// Repairing means the fragment is below target but recoverable.
	Repairing Health = "repairing"
	// Unavailable means no accessible replica exists.
	Unavailable Health = "unavailable"
	// Available is the aggregate chunk health when every fragment has at
	// least one accessible replica.
	Available Health = "available"
)

// DataLayer addresses the data fragments of a chunk. Parity layers are not
// analyzed yet.
const DataLayer = "D"

// Node is the hydrated state of the storage node holding a block.
type Node struct {
	ID        storage.ID
	Pool      storage.ID
	Heartbeat time.Time
	SrvMode   SrvMode
}

// Block is one physical replica of a fragment. Building is the allocation
// timestamp of an unfinished block; the zero time means the block is built.
type Block struct {
	ID       storage.ID
	Layer    string
	Frag     int
	Node     Node
	Building time.Time
}

// Chunk is a sized unit of object data with a fixed number of data
// fragments.
type Chunk struct {
	ID        storage.ID
	System    storage.ID
	Tier      storage.ID
	Size      int64
	DataFrags int
}

// AllocRequest asks the block allocator for one new block, replicated from
// Source. Source is nil only when no accessible replica exists, in which
// case the fragment is unavailable and no request is emitted.
type AllocRequest struct {
	System storage.ID
	Tier   storage.ID
	Chunk  storage.ID
	Layer  string
	Frag   int
	Source *Block
}

// FragStatus is the per-fragment analysis result. Each policy block of the
// fragment lands in at most one classification list; built, live blocks on a
// decommissioning node land in none and appear only in Accessible.
// Accessible additionally includes readable replicas outside the target
// pools.
type FragStatus struct {
	Layer  string
	Frag   int
	Health Health

	Good         []*Block
	ShortGone    []*Block
	LongGone     []*Block
	LongBuilding []*Block
	Building     []*Block
	Accessible   []*Block
}

// Result describes the work needed to converge a chunk toward its replica
// target. The caller actuates the lists; the analyzer never allocates or
// removes blocks itself.
type Result struct {
	Chunk            *Chunk
	AllBlocks        []*Block
	Frags            []*FragStatus
	BlocksToRemove   []*Block
	BlocksToAllocate []AllocRequest
	ChunkHealth      Health
}

// Analyze classifies a chunk's blocks against the target pool set and
// computes its health, the blocks to remove, and the allocations needed.
//
// poolGroups comes from PoolsGroups; for now the groups are flattened into a
// single pool set, with per-group mirror analysis as the extension point.
func Analyze(config Config, chunk *Chunk, blocks []*Block, poolGroups [][]storage.ID, now time.Time) *Result {
	pools := map[storage.ID]bool{}
	for _, group := range poolGroups {
		for _, pool := range group {
			pools[pool] = true
		}
	}

	var policyBlocks, otherBlocks []*Block
	for _, block := range blocks {
		if pools[block.Node.Pool] {
			policyBlocks = append(policyBlocks, block)
		} else {
			otherBlocks = append(otherBlocks, block)
		}
	}

	// no replicas on the target pools yet: the whole chunk must receive a
	// full mirror onto this pool set
	mirroredPool := len(policyBlocks) == 0

	result := &Result{
		Chunk:       chunk,
		AllBlocks:   policyBlocks,
		ChunkHealth: Available,
	}

	for frag := 0; frag < chunk.DataFrags; frag++ {
		status := analyzeFrag(config, chunk, frag, policyBlocks, otherBlocks, mirroredPool, now, result)
		result.Frags = append(result.Frags, status)
		if status.Health == Unavailable {
			result.ChunkHealth = Unavailable
		}
	}

	return result
}

func analyzeFrag(config Config, chunk *Chunk, frag int, policyBlocks, otherBlocks []*Block, mirroredPool bool, now time.Time, result *Result) *FragStatus {
	status := &FragStatus{Layer: DataLayer, Frag: frag}

	fragBlocks := filterFrag(policyBlocks, frag)
	sortByAccess(fragBlocks)

	for _, block := range fragBlocks {
		switch classify(block, now, config) {
		case classGood:
			status.Good = append(status.Good, block)
		case classShortGone:
			status.ShortGone = append(status.ShortGone, block)
		case classLongGone:
			status.LongGone = append(status.LongGone, block)
		case classLongBuilding:
			status.LongBuilding = append(status.LongBuilding, block)
		case classBuilding:
			status.Building = append(status.Building, block)
		}
		if accessible(block, now, config) {
			status.Accessible = append(status.Accessible, block)
		}
	}

	// replicas outside the target pools still count as sources
	outside := filterFrag(otherBlocks, frag)
	sortByAccess(outside)
	for _, block := range outside {
		if accessible(block, now, config) {
			status.Accessible = append(status.Accessible, block)
		}
	}

	good := len(status.Good)
	switch {
	case len(status.Accessible) == 0:
		status.Health = Unavailable
	case good < config.OptimalReplicas || mirroredPool:
		status.Health = Repairing
	default:
		status.Health = Healthy
	}

	if good > config.OptimalReplicas {
		result.BlocksToRemove = append(result.BlocksToRemove, status.LongBuilding...)
		result.BlocksToRemove = append(result.BlocksToRemove, status.LongGone...)
		result.BlocksToRemove = append(result.BlocksToRemove, status.Good[config.OptimalReplicas:]...)
		// short-gone blocks get another grace period
	}

	if status.Health == Repairing {
		missing := config.OptimalReplicas - good
		if missing < 0 {
			missing = 0
		}
		for i := 0; i < missing; i++ {
			result.BlocksToAllocate = append(result.BlocksToAllocate, AllocRequest{
				System: chunk.System,
				Tier:   chunk.Tier,
				Chunk:  chunk.ID,
				Layer:  DataLayer,
				Frag:   frag,
				Source: status.Accessible[i%len(status.Accessible)],
			})
		}
	}

	return status
}

type class int

const (
	classOther class = iota
	classGood
	classShortGone
	classLongGone
	classLongBuilding
	classBuilding
)

func classify(block *Block, now time.Time, config Config) class {
	heartbeatAge := now.Sub(block.Node.Heartbeat)
	switch {
	case heartbeatAge > config.LongGoneThreshold || block.Node.SrvMode == SrvModeDisabled:
		return classLongGone
	case heartbeatAge > config.ShortGoneThreshold:
		return classShortGone
	case !block.Building.IsZero() && now.Sub(block.Building) > config.LongBuildThreshold:
		return classLongBuilding
	case !block.Building.IsZero():
		return classBuilding
	case block.Node.SrvMode == SrvModeNone:
		return classGood
	default:
		// decommissioning but alive: readable, not counted good
		return classOther
	}
}

// accessible reports whether the block can serve reads: its node is not gone
// and is either serving normally or decommissioning.
func accessible(block *Block, now time.Time, config Config) bool {
	switch classify(block, now, config) {
	case classLongGone, classShortGone:
		return false
	}
	return block.Node.SrvMode == SrvModeNone || block.Node.SrvMode == SrvModeDecommissioning
}

func filterFrag(blocks []*Block, frag int) []*Block {
	var out []*Block
	for _, block := range blocks {
		if block.Layer == DataLayer && block.Frag == frag {
			out = append(out, block)
		}
	}
	return out
}

// sortByAccess orders blocks for parallel decision making: building blocks
// last, then blocks on nodes with a service mode set, then most recent
// heartbeat first. The sort must be stable so repeated runs agree.
func sortByAccess(blocks []*Block) {
	sort.SliceStable(blocks, func(i, k int) bool {
		a, b := blocks[i], blocks[k]
		if a.Building.IsZero() != b.Building.IsZero() {
			return a.Building.IsZero()
		}
		if (a.Node.SrvMode == SrvModeNone) != (b.Node.SrvMode == SrvModeNone) {
			return a.Node.SrvMode == SrvModeNone
		}
		return a.Node.Heartbeat.After(b.Node.Heartbeat)
	})
}
