// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package boltdb

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

var (
	defaultTimeout = 1 * time.Second

	// Error is the error class for the bolt-backed document store.
	Error = errs.Class("boltdb error")
)

const (
	// fileMode sets permissions so owner can read and write
	fileMode = 0600

	collectionPrefix = "col:"
	indexPrefix      = "idx:"
)

// Client is a document store backed by a Bolt database. Each collection is a
// bucket of id -> JSON document; each unique compound index is a bucket of
// tuple key -> id.
type Client struct {
	logger *zap.Logger
	db     *bolt.DB
	Path   string

	mu      sync.Mutex
	indexes map[string][]storage.IndexFields
}

// New instantiates a new bolt-backed document store.
func New(logger *zap.Logger, path string) (*Client, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return &Client{
		logger:  logger,
		db:      db,
		Path:    path,
		indexes: map[string][]storage.IndexFields{},
	}, nil
}

func collectionBucket(collection string) []byte {
	return []byte(collectionPrefix + collection)
}

func indexBucket(collection string, fields storage.IndexFields) []byte {
	return []byte(indexPrefix + collection + ":" + fields.IndexName())
}

// EnsureCollection creates the collection and index buckets if missing and
// backfills index entries for existing documents.
func (client *Client) EnsureCollection(ctx context.Context, collection string, uniqueIndexes []storage.IndexFields) error {
	client.mu.Lock()
	client.indexes[collection] = uniqueIndexes
	client.mu.Unlock()

	return Error.Wrap(client.db.Update(func(tx *bolt.Tx) error {
		docs, err := tx.CreateBucketIfNotExists(collectionBucket(collection))
		if err != nil {
			return err
		}
		for _, fields := range uniqueIndexes {
			idx := tx.Bucket(indexBucket(collection, fields))
			if idx != nil {
				continue
			}
			idx, err = tx.CreateBucket(indexBucket(collection, fields))
			if err != nil {
				return err
			}
			// backfill entries for documents written before the
			// index was declared
			err = docs.ForEach(func(id, data []byte) error {
				var doc storage.Doc
				if err := json.Unmarshal(data, &doc); err != nil {
					return err
				}
				return idx.Put([]byte(storage.IndexKey(doc, fields)), id)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// FindLive returns all documents without a tombstone.
func (client *Client) FindLive(ctx context.Context, collection string) ([]storage.Doc, error) {
	var docs []storage.Doc
	err := client.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionBucket(collection))
		if bucket == nil {
			return storage.ErrCollectionNotFound.New("%q", collection)
		}
		return bucket.ForEach(func(id, data []byte) error {
			var doc storage.Doc
			if err := json.Unmarshal(data, &doc); err != nil {
				return Error.New("unmarshal %s/%s: %v", collection, id, err)
			}
			if storage.IsLive(doc) {
				docs = append(docs, doc)
			}
			return nil
		})
	})
	return docs, err
}

// Get returns the document with the given id.
func (client *Client) Get(ctx context.Context, collection string, id storage.ID) (storage.Doc, error) {
	var doc storage.Doc
	err := client.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionBucket(collection))
		if bucket == nil {
			return storage.ErrCollectionNotFound.New("%q", collection)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound.New("%s/%s", collection, id)
		}
		return json.Unmarshal(data, &doc)
	})
	return doc, err
}

// BulkWrite executes ops as an unordered bulk inside a single transaction.
// A failing op does not abort its siblings.
func (client *Client) BulkWrite(ctx context.Context, collection string, ops []storage.Op) error {
	client.mu.Lock()
	uniqueIndexes := client.indexes[collection]
	client.mu.Unlock()

	var group errs.Group
	err := client.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionBucket(collection))
		if bucket == nil {
			return storage.ErrCollectionNotFound.New("%q", collection)
		}
		for _, op := range ops {
			group.Add(client.apply(tx, bucket, collection, uniqueIndexes, op))
		}
		return nil
	})
	if err != nil {
		return Error.Wrap(err)
	}
	return group.Err()
}

func (client *Client) apply(tx *bolt.Tx, bucket *bolt.Bucket, collection string, uniqueIndexes []storage.IndexFields, op storage.Op) error {
	switch op := op.(type) {
	case storage.Insert:
		id := storage.DocID(op.Doc)
		if id.IsZero() {
			return storage.Error.New("insert without _id")
		}
		if bucket.Get([]byte(id)) != nil {
			return storage.ErrDuplicateKey.New("_id %s", id)
		}
		return client.save(tx, bucket, collection, uniqueIndexes, id, nil, op.Doc)

	case storage.UpdateOne:
		return client.update(tx, bucket, collection, uniqueIndexes, op.ID, op.Update)

	case storage.SetDeleted:
		return client.update(tx, bucket, collection, uniqueIndexes, op.ID, storage.Doc{
			"$set": map[string]interface{}{
				storage.DeletedField: op.At.UTC().Format(time.RFC3339Nano),
			},
		})

	default:
		return storage.Error.New("unknown op %T", op)
	}
}

func (client *Client) update(tx *bolt.Tx, bucket *bolt.Bucket, collection string, uniqueIndexes []storage.IndexFields, id storage.ID, update storage.Doc) error {
	data := bucket.Get([]byte(id))
	if data == nil {
		return storage.ErrNotFound.New("%s/%s", collection, id)
	}
	var old storage.Doc
	if err := json.Unmarshal(data, &old); err != nil {
		return Error.Wrap(err)
	}
	updated := storage.CloneDoc(old)
	if err := storage.ApplyUpdate(updated, update); err != nil {
		return err
	}
	return client.save(tx, bucket, collection, uniqueIndexes, id, old, updated)
}

// save checks every unique index for collisions, then writes the document and
// moves its index entries.
func (client *Client) save(tx *bolt.Tx, bucket *bolt.Bucket, collection string, uniqueIndexes []storage.IndexFields, id storage.ID, old, updated storage.Doc) error {
	for _, fields := range uniqueIndexes {
		idx := tx.Bucket(indexBucket(collection, fields))
		if idx == nil {
			continue
		}
		key := []byte(storage.IndexKey(updated, fields))
		if existing := idx.Get(key); existing != nil && storage.ID(existing) != id {
			return storage.ErrDuplicateKey.New("index %s key %s", fields.IndexName(), key)
		}
	}

	data, err := json.Marshal(updated)
	if err != nil {
		return Error.Wrap(err)
	}
	if err := bucket.Put([]byte(id), data); err != nil {
		return Error.Wrap(err)
	}

	for _, fields := range uniqueIndexes {
		idx := tx.Bucket(indexBucket(collection, fields))
		if idx == nil {
			continue
		}
		if old != nil {
			if err := idx.Delete([]byte(storage.IndexKey(old, fields))); err != nil {
				return Error.Wrap(err)
			}
		}
		if err := idx.Put([]byte(storage.IndexKey(updated, fields)), []byte(id)); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Close closes the bolt database.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
