// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package systemstore

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

// Snapshot is an immutable, indexed view of the catalog. It is built in
// private and published atomically; readers never observe a partial build.
//
// Entities form an arena keyed by id. Cross-references between entities are
// non-owning links into the arena, so cycles (bucket -> tiering -> tier ->
// pool and back-indexes hanging off their owners) are fine.
type Snapshot struct {
	// Data holds the resolved documents per collection.
	Data map[string][]storage.Doc

	idmap map[storage.ID]storage.Doc
	root  storage.Doc
}

// NewSnapshot builds a snapshot from raw per-collection documents in three
// phases: id arena, reference resolution, secondary indexes. An id shared by
// two documents is a fatal build error.
func NewSnapshot(logger *zap.Logger, data map[string][]storage.Doc) (*Snapshot, error) {
	snapshot := &Snapshot{
		Data:  data,
		idmap: map[storage.ID]storage.Doc{},
		root:  storage.Doc{},
	}

	for collection, docs := range data {
		for _, doc := range docs {
			id := storage.DocID(doc)
			if id.IsZero() {
				return nil, Error.New("document without _id in %q", collection)
			}
			if _, exists := snapshot.idmap[id]; exists {
				return nil, Error.New("duplicate id %s in %q", id, collection)
			}
			snapshot.idmap[id] = doc
		}
	}

	for _, doc := range snapshot.idmap {
		snapshot.resolveFields(doc)
	}

	for _, def := range Indexes {
		for _, item := range data[def.Collection] {
			snapshot.addIndexEntry(logger, def, item)
		}
	}

	return snapshot, nil
}

// resolveFields replaces identifier values with their entity, walking nested
// objects and arrays. The _id and id fields are left as identifiers.
func (snapshot *Snapshot) resolveFields(doc storage.Doc) {
	for key, value := range doc {
		if key == "_id" || key == "id" {
			continue
		}
		doc[key] = snapshot.resolveValue(value)
	}
}

func (snapshot *Snapshot) resolveValue(value interface{}) interface{} {
	switch val := value.(type) {
	case string:
		if target, ok := snapshot.idmap[storage.ID(val)]; ok {
			return target
		}
		return val
	case map[string]interface{}:
		// an entity reached through a reference is a link into the
		// arena, not part of this document's structure
		if id, ok := val["_id"].(string); ok {
			if _, entity := snapshot.idmap[storage.ID(id)]; entity {
				return val
			}
		}
		snapshot.resolveFields(val)
		return val
	case []interface{}:
		for i := range val {
			val[i] = snapshot.resolveValue(val[i])
		}
		return val
	default:
		return value
	}
}

// addIndexEntry assigns one item into a secondary index. Duplicate keys on a
// non-array index log a collision and keep the first entry.
func (snapshot *Snapshot) addIndexEntry(logger *zap.Logger, def IndexDef, item storage.Doc) {
	context := snapshot.indexContext(def, item)
	if context == nil {
		return
	}
	keyValue, ok := storage.PathValue(item, def.Key)
	if !ok {
		return
	}
	key := fmt.Sprint(keyValue)

	var value interface{} = item
	if def.Val != "" {
		value, ok = storage.PathValue(item, def.Val)
		if !ok {
			return
		}
	}

	table, _ := context[def.Name].(map[string]interface{})
	if table == nil {
		table = map[string]interface{}{}
		context[def.Name] = table
	}

	if def.ValArray {
		list, _ := table[key].([]interface{})
		table[key] = append(list, value)
		return
	}
	if _, exists := table[key]; exists {
		logger.Error("index collision",
			zap.String("index", def.Name),
			zap.String("key", key),
			zap.String("id", storage.DocID(item).String()))
		return
	}
	table[key] = value
}

// indexContext locates the object the index hangs off: the snapshot root or,
// after resolution, an owner entity inside the item.
func (snapshot *Snapshot) indexContext(def IndexDef, item storage.Doc) storage.Doc {
	if def.Context == "" {
		return snapshot.root
	}
	owner, ok := storage.PathValue(item, def.Context)
	if !ok {
		return nil
	}
	doc, _ := owner.(map[string]interface{})
	return doc
}

// ByID returns the entity with the given id, or nil.
func (snapshot *Snapshot) ByID(id storage.ID) storage.Doc {
	return snapshot.idmap[id]
}

// Lookup reads a secondary index. A nil context reads root-level indexes;
// otherwise context is the owner entity the index hangs off.
func (snapshot *Snapshot) Lookup(index string, key interface{}, context storage.Doc) interface{} {
	if context == nil {
		context = snapshot.root
	}
	table, _ := context[index].(map[string]interface{})
	if table == nil {
		return nil
	}
	return table[fmt.Sprint(key)]
}

// CheckConflicts replays non-array index assignment for a candidate document
// against the snapshot. It returns ErrConflict when any index already maps
// the candidate's key to a different id.
//
// A racing writer landing between this check and bulk execution surfaces as
// the store's unique index error instead.
func (snapshot *Snapshot) CheckConflicts(collection string, candidate storage.Doc) error {
	for _, def := range Indexes {
		if def.Collection != collection || def.ValArray {
			continue
		}
		context := snapshot.root
		if def.Context != "" {
			owner, ok := snapshot.resolvedPath(candidate, def.Context)
			if !ok {
				continue
			}
			context, _ = owner.(map[string]interface{})
			if context == nil {
				continue
			}
		}
		keyValue, ok := snapshot.resolvedPath(candidate, def.Key)
		if !ok {
			continue
		}
		existing := snapshot.Lookup(def.Name, keyValue, context)
		if existing == nil {
			continue
		}
		if doc, ok := existing.(map[string]interface{}); ok {
			if storage.DocID(doc) == storage.DocID(candidate) {
				continue
			}
		}
		return ErrConflict.New("%s: index %s already has key %v", collection, def.Name, keyValue)
	}
	return nil
}

// conflictKeys returns the non-array index slots a candidate would occupy,
// as canonical strings. Two documents competing for a slot within one batch
// conflict even before either is written.
func (snapshot *Snapshot) conflictKeys(collection string, candidate storage.Doc) []string {
	var keys []string
	for _, def := range Indexes {
		if def.Collection != collection || def.ValArray {
			continue
		}
		contextID := ""
		if def.Context != "" {
			owner, ok := snapshot.resolvedPath(candidate, def.Context)
			if !ok {
				continue
			}
			doc, _ := owner.(map[string]interface{})
			if doc == nil {
				// context entity is not in the arena yet; fall back
				// to the raw reference value
				contextID = fmt.Sprint(owner)
			} else {
				contextID = storage.DocID(doc).String()
			}
		}
		keyValue, ok := snapshot.resolvedPath(candidate, def.Key)
		if !ok {
			continue
		}
		keys = append(keys, def.Name+"\x00"+contextID+"\x00"+fmt.Sprint(keyValue))
	}
	return keys
}

// resolvedPath resolves a dotted path against a candidate whose references
// may still be raw identifiers, following them through the arena.
func (snapshot *Snapshot) resolvedPath(candidate storage.Doc, path string) (interface{}, bool) {
	value, ok := storage.PathValue(candidate, path)
	if ok {
		if str, isString := value.(string); isString {
			if target, entity := snapshot.idmap[storage.ID(str)]; entity {
				return target, true
			}
		}
		return value, true
	}

	// the path may cross an unresolved reference mid-way; resolve one
	// segment at a time
	var cur interface{} = candidate
	for _, seg := range strings.Split(path, ".") {
		if str, isString := cur.(string); isString {
			target, entity := snapshot.idmap[storage.ID(str)]
			if !entity {
				return nil, false
			}
			cur = target
		}
		doc, isDoc := cur.(map[string]interface{})
		if !isDoc {
			return nil, false
		}
		cur, ok = doc[seg]
		if !ok {
			return nil, false
		}
	}
	if str, isString := cur.(string); isString {
		if target, entity := snapshot.idmap[storage.ID(str)]; entity {
			return target, true
		}
	}
	return cur, true
}
