// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import (
	"context"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

// Allocator actuates analysis results. The analyzer never calls it; the
// caller feeds it the remove and allocate lists of a Result.
type Allocator interface {
	// AllocateBlock writes one new block record for the request,
	// replicating from the request's source and avoiding the given nodes.
	AllocateBlock(ctx context.Context, req AllocRequest, avoidNodes []storage.ID) error
	// RemoveBlocks retires the given block records.
	RemoveBlocks(ctx context.Context, blocks []*Block) error
}
