// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import (
	"sort"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

// Placement modes of a tier.
const (
	// Mirror replicates fragments onto every pool of the tier.
	Mirror = "MIRROR"
	// Spread places fragments across the union of the tier's pools.
	Spread = "SPREAD"
)

// PoolsGroups derives the target pool groups for a bucket from its resolved
// tiering policy: MIRROR yields one group per pool, SPREAD one combined
// group.
//
// TODO: only the first tier is read; multi-tier policies need per-tier
// analysis.
func PoolsGroups(bucket storage.Doc) ([][]storage.ID, error) {
	tiering, ok := bucket["tiering"].(map[string]interface{})
	if !ok {
		return nil, Error.New("bucket %s has unresolved tiering", storage.DocID(bucket))
	}
	list, ok := tiering["tiers"].([]interface{})
	if !ok || len(list) == 0 {
		return nil, Error.New("tiering %s has no tiers", storage.DocID(tiering))
	}

	// sort a copy; the tiering entity is shared snapshot state
	entries := append([]interface{}{}, list...)
	sort.SliceStable(entries, func(i, k int) bool {
		return tierOrder(entries[i]) < tierOrder(entries[k])
	})

	first, ok := entries[0].(map[string]interface{})
	if !ok {
		return nil, Error.New("tiering %s has a malformed tier entry", storage.DocID(tiering))
	}
	tier, ok := first["tier"].(map[string]interface{})
	if !ok {
		return nil, Error.New("tiering %s has an unresolved tier", storage.DocID(tiering))
	}

	var pools []storage.ID
	if poolList, ok := tier["pools"].([]interface{}); ok {
		for _, entry := range poolList {
			switch pool := entry.(type) {
			case map[string]interface{}:
				pools = append(pools, storage.DocID(pool))
			case string:
				pools = append(pools, storage.ID(pool))
			}
		}
	}

	placement, _ := tier["data_placement"].(string)
	switch placement {
	case Mirror:
		groups := make([][]storage.ID, 0, len(pools))
		for _, pool := range pools {
			groups = append(groups, []storage.ID{pool})
		}
		return groups, nil
	case Spread:
		return [][]storage.ID{pools}, nil
	default:
		return nil, Error.New("tier %s has unknown data placement %q", storage.DocID(tier), placement)
	}
}

func tierOrder(entry interface{}) float64 {
	doc, ok := entry.(map[string]interface{})
	if !ok {
		return 0
	}
	order, _ := doc["order"].(float64)
	return order
}
