// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// Error is the default error class for the storage package.
var Error = errs.Class("storage error")

// ErrNotFound is returned when a document does not exist in a collection.
var ErrNotFound = errs.Class("document not found")

// ErrDuplicateKey is returned when a write violates a unique index.
var ErrDuplicateKey = errs.Class("duplicate key")

// ErrCollectionNotFound is returned when a collection has not been ensured.
var ErrCollectionNotFound = errs.Class("collection not found")

// ID is an opaque document identifier.
type ID string

// NewID generates a fresh document identifier.
func NewID() ID { return ID(uuid.NewString()) }

// IsZero returns true if the id is unset.
func (id ID) IsZero() bool { return id == "" }

// String implements the Stringer interface.
func (id ID) String() string { return string(id) }

// Doc is a generic document as stored in a collection. Field values are the
// JSON kinds: string, float64, bool, nil, []interface{} and Doc-shaped maps.
type Doc = map[string]interface{}

// DocID extracts the _id field of a document.
func DocID(doc Doc) ID {
	switch v := doc["_id"].(type) {
	case string:
		return ID(v)
	case ID:
		return v
	}
	return ""
}

// IndexFields is an ordered tuple of dotted field paths forming a unique
// compound index. The deleted field always participates so that tombstones
// never collide with live documents.
type IndexFields []string

// Op is a single write in an unordered bulk.
type Op interface {
	isOp()
}

// Insert adds a new document.
type Insert struct {
	Doc Doc
}

// UpdateOne applies an operator update to the document with the given id.
type UpdateOne struct {
	ID     ID
	Update Doc
}

// SetDeleted marks the document with the given id as deleted at the
// given time.
type SetDeleted struct {
	ID ID
	At time.Time
}

func (Insert) isOp()     {}
func (UpdateOne) isOp()  {}
func (SetDeleted) isOp() {}

// Store is an interface describing document stores keyed by collection,
// like mongo, boltdb and the in-memory test store.
type Store interface {
	// EnsureCollection creates the collection and its unique compound
	// indexes if missing. It is idempotent.
	EnsureCollection(ctx context.Context, collection string, uniqueIndexes []IndexFields) error
	// FindLive returns every document in the collection whose deleted
	// field is unset.
	FindLive(ctx context.Context, collection string) ([]Doc, error)
	// Get returns the document with the given id.
	Get(ctx context.Context, collection string, id ID) (Doc, error)
	// BulkWrite executes the ops as an unordered bulk. A failing op does
	// not abort its siblings; all failures are combined into the returned
	// error.
	BulkWrite(ctx context.Context, collection string, ops []Op) error
	Close() error
}

// DeletedField is the tombstone timestamp field present on every document.
const DeletedField = "deleted"

// IsLive reports whether the document has no tombstone.
func IsLive(doc Doc) bool {
	v, ok := doc[DeletedField]
	return !ok || v == nil
}
