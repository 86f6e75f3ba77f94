// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package systemstore

import (
	"github.com/MeridianExplorer/noobaa-core/storage"
)

// Collection declares one catalog collection: its strict document schema and
// the unique compound indexes the store enforces. The deleted field
// participates in every unique tuple so tombstones never collide with
// live inserts.
type Collection struct {
	Name          string
	Schema        string
	UniqueIndexes []storage.IndexFields
}

// Collections lists every collection of the catalog in load order.
var Collections = []Collection{
	{
		Name:   "systems",
		Schema: systemSchema,
		UniqueIndexes: []storage.IndexFields{
			{"name", "deleted"},
		},
	},
	{
		Name:   "accounts",
		Schema: accountSchema,
		UniqueIndexes: []storage.IndexFields{
			{"email", "deleted"},
		},
	},
	{
		Name:   "roles",
		Schema: roleSchema,
		UniqueIndexes: []storage.IndexFields{
			{"account", "system", "role", "deleted"},
		},
	},
	{
		Name:   "buckets",
		Schema: bucketSchema,
		UniqueIndexes: []storage.IndexFields{
			{"system", "name", "deleted"},
		},
	},
	{
		Name:   "tieringpolicies",
		Schema: tieringPolicySchema,
		UniqueIndexes: []storage.IndexFields{
			{"system", "name", "deleted"},
		},
	},
	{
		Name:   "tiers",
		Schema: tierSchema,
		UniqueIndexes: []storage.IndexFields{
			{"system", "name", "deleted"},
		},
	},
	{
		Name:   "pools",
		Schema: poolSchema,
		UniqueIndexes: []storage.IndexFields{
			{"system", "name", "deleted"},
		},
	},
}

// SchemaSources returns the collection -> schema source map for the
// schema registry.
func SchemaSources() map[string]string {
	sources := make(map[string]string, len(Collections))
	for _, coll := range Collections {
		sources[coll.Name] = coll.Schema
	}
	return sources
}

// IndexDef declares one secondary snapshot index, evaluated after reference
// resolution.
//
// Key and Val are dotted paths into the item; an empty Val indexes the item
// itself. Context is a dotted path to the owner entity the index hangs off;
// empty means the snapshot root. When ValArray is set, values with the same
// key accumulate into a slice instead of colliding.
type IndexDef struct {
	Name       string
	Collection string
	Context    string
	Key        string
	Val        string
	ValArray   bool
}

// Indexes lists the secondary indexes built into every snapshot.
var Indexes = []IndexDef{
	{Name: "systems_by_name", Collection: "systems", Key: "name"},
	{Name: "accounts_by_email", Collection: "accounts", Key: "email"},
	{Name: "buckets_by_name", Collection: "buckets", Context: "system", Key: "name"},
	{Name: "tiering_by_name", Collection: "tieringpolicies", Context: "system", Key: "name"},
	{Name: "tiers_by_name", Collection: "tiers", Context: "system", Key: "name"},
	{Name: "pools_by_name", Collection: "pools", Context: "system", Key: "name"},
	{Name: "roles_by_account", Collection: "roles", Context: "account", Key: "system._id", Val: "role", ValArray: true},
	{Name: "roles_by_system", Collection: "roles", Context: "system", Key: "account._id", Val: "role", ValArray: true},
}
