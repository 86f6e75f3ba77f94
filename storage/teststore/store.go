// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package teststore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/errs"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

// Client implements an in-memory document store.
type Client struct {
	mu sync.Mutex

	collections map[string]*collection

	CallCount struct {
		EnsureCollection int
		FindLive         int
		Get              int
		BulkWrite        int
		Close            int
	}

	// ForcedError fails every BulkWrite while set.
	ForcedError error
}

type collection struct {
	docs    map[storage.ID]storage.Doc
	indexes []storage.IndexFields
	// entries maps index name -> tuple key -> document id
	entries map[string]map[string]storage.ID
}

// New creates a new in-memory document store.
func New() *Client {
	return &Client{collections: map[string]*collection{}}
}

// EnsureCollection creates the collection and its unique indexes if missing.
func (client *Client) EnsureCollection(ctx context.Context, name string, uniqueIndexes []storage.IndexFields) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.CallCount.EnsureCollection++

	coll, ok := client.collections[name]
	if !ok {
		coll = &collection{
			docs:    map[storage.ID]storage.Doc{},
			entries: map[string]map[string]storage.ID{},
		}
		client.collections[name] = coll
	}

next:
	for _, fields := range uniqueIndexes {
		for _, existing := range coll.indexes {
			if existing.IndexName() == fields.IndexName() {
				continue next
			}
		}
		coll.indexes = append(coll.indexes, fields)
		entries := map[string]storage.ID{}
		for id, doc := range coll.docs {
			entries[storage.IndexKey(doc, fields)] = id
		}
		coll.entries[fields.IndexName()] = entries
	}
	return nil
}

// FindLive returns all documents without a tombstone, ordered by id.
func (client *Client) FindLive(ctx context.Context, name string) ([]storage.Doc, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.CallCount.FindLive++

	coll, ok := client.collections[name]
	if !ok {
		return nil, storage.ErrCollectionNotFound.New("%q", name)
	}

	var docs []storage.Doc
	for _, doc := range coll.docs {
		if storage.IsLive(doc) {
			docs = append(docs, storage.CloneDoc(doc))
		}
	}
	sort.Slice(docs, func(i, k int) bool {
		return storage.DocID(docs[i]) < storage.DocID(docs[k])
	})
	return docs, nil
}

// Get returns the document with the given id.
func (client *Client) Get(ctx context.Context, name string, id storage.ID) (storage.Doc, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.CallCount.Get++

	coll, ok := client.collections[name]
	if !ok {
		return nil, storage.ErrCollectionNotFound.New("%q", name)
	}
	doc, ok := coll.docs[id]
	if !ok {
		return nil, storage.ErrNotFound.New("%s/%s", name, id)
	}
	return storage.CloneDoc(doc), nil
}

// BulkWrite executes ops as an unordered bulk. Failing ops do not abort their
// siblings.
func (client *Client) BulkWrite(ctx context.Context, name string, ops []storage.Op) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.CallCount.BulkWrite++

	if client.ForcedError != nil {
		return client.ForcedError
	}

	coll, ok := client.collections[name]
	if !ok {
		return storage.ErrCollectionNotFound.New("%q", name)
	}

	var group errs.Group
	for _, op := range ops {
		group.Add(coll.apply(op))
	}
	return group.Err()
}

func (coll *collection) apply(op storage.Op) error {
	switch op := op.(type) {
	case storage.Insert:
		id := storage.DocID(op.Doc)
		if id.IsZero() {
			return storage.Error.New("insert without _id")
		}
		if _, exists := coll.docs[id]; exists {
			return storage.ErrDuplicateKey.New("_id %s", id)
		}
		doc := storage.CloneDoc(op.Doc)
		if err := coll.reindex(id, nil, doc); err != nil {
			return err
		}
		coll.docs[id] = doc
		return nil

	case storage.UpdateOne:
		return coll.update(op.ID, op.Update)

	case storage.SetDeleted:
		return coll.update(op.ID, storage.Doc{
			"$set": map[string]interface{}{
				storage.DeletedField: op.At.UTC().Format(time.RFC3339Nano),
			},
		})

	default:
		return storage.Error.New("unknown op %T", op)
	}
}

func (coll *collection) update(id storage.ID, update storage.Doc) error {
	doc, ok := coll.docs[id]
	if !ok {
		return storage.ErrNotFound.New("%s", id)
	}
	updated := storage.CloneDoc(doc)
	if err := storage.ApplyUpdate(updated, update); err != nil {
		return err
	}
	if err := coll.reindex(id, doc, updated); err != nil {
		return err
	}
	coll.docs[id] = updated
	return nil
}

// reindex moves the document between index tuple keys, failing on collision
// with a different document.
func (coll *collection) reindex(id storage.ID, old, updated storage.Doc) error {
	for _, fields := range coll.indexes {
		entries := coll.entries[fields.IndexName()]
		key := storage.IndexKey(updated, fields)
		if existing, ok := entries[key]; ok && existing != id {
			return storage.ErrDuplicateKey.New("index %s key %s", fields.IndexName(), key)
		}
	}
	for _, fields := range coll.indexes {
		entries := coll.entries[fields.IndexName()]
		if old != nil {
			delete(entries, storage.IndexKey(old, fields))
		}
		entries[storage.IndexKey(updated, fields)] = id
	}
	return nil
}

// Close closes the store.
func (client *Client) Close() error {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.CallCount.Close++
	return nil
}
