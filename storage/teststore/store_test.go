// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package teststore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianExplorer/noobaa-core/storage"
	"github.com/MeridianExplorer/noobaa-core/storage/teststore"
)

var nameIndex = []storage.IndexFields{{"system", "name", "deleted"}}

func TestInsertAndFindLive(t *testing.T) {
	ctx := context.Background()
	store := teststore.New()
	require.NoError(t, store.EnsureCollection(ctx, "buckets", nameIndex))

	err := store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b1", "system": "s1", "name": "photos"}},
		storage.Insert{Doc: storage.Doc{"_id": "b2", "system": "s1", "name": "videos"}},
	})
	require.NoError(t, err)

	docs, err := store.FindLive(ctx, "buckets")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.SetDeleted{ID: "b2", At: time.Now()},
	})
	require.NoError(t, err)

	docs, err = store.FindLive(ctx, "buckets")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, storage.ID("b1"), storage.DocID(docs[0]))

	// the tombstone is still readable by id
	doc, err := store.Get(ctx, "buckets", "b2")
	require.NoError(t, err)
	assert.NotNil(t, doc[storage.DeletedField])
}

func TestUniqueIndexViolation(t *testing.T) {
	ctx := context.Background()
	store := teststore.New()
	require.NoError(t, store.EnsureCollection(ctx, "buckets", nameIndex))

	err := store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b1", "system": "s1", "name": "photos"}},
	})
	require.NoError(t, err)

	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b2", "system": "s1", "name": "photos"}},
	})
	require.Error(t, err)
	assert.True(t, storage.ErrDuplicateKey.Has(err))

	// a different system may reuse the name
	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b3", "system": "s2", "name": "photos"}},
	})
	require.NoError(t, err)
}

func TestTombstoneFreesUniqueKey(t *testing.T) {
	ctx := context.Background()
	store := teststore.New()
	require.NoError(t, store.EnsureCollection(ctx, "buckets", nameIndex))

	err := store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b1", "system": "s1", "name": "photos"}},
	})
	require.NoError(t, err)

	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.SetDeleted{ID: "b1", At: time.Now()},
	})
	require.NoError(t, err)

	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b4", "system": "s1", "name": "photos"}},
	})
	require.NoError(t, err)
}

func TestBulkSiblingIndependence(t *testing.T) {
	ctx := context.Background()
	store := teststore.New()
	require.NoError(t, store.EnsureCollection(ctx, "buckets", nameIndex))

	err := store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b1", "system": "s1", "name": "photos"}},
		storage.UpdateOne{ID: "missing", Update: storage.Doc{"$set": map[string]interface{}{"name": "x"}}},
		storage.Insert{Doc: storage.Doc{"_id": "b2", "system": "s1", "name": "videos"}},
	})
	require.Error(t, err)
	assert.True(t, storage.ErrNotFound.Has(err))

	// the failing sibling did not abort the other ops
	docs, err := store.FindLive(ctx, "buckets")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestUpdateMovesIndexEntry(t *testing.T) {
	ctx := context.Background()
	store := teststore.New()
	require.NoError(t, store.EnsureCollection(ctx, "buckets", nameIndex))

	err := store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b1", "system": "s1", "name": "photos"}},
	})
	require.NoError(t, err)

	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.UpdateOne{ID: "b1", Update: storage.Doc{"$set": map[string]interface{}{"name": "archive"}}},
	})
	require.NoError(t, err)

	// the old key is free again
	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b2", "system": "s1", "name": "photos"}},
	})
	require.NoError(t, err)

	// the new key is taken
	err = store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b3", "system": "s1", "name": "archive"}},
	})
	require.Error(t, err)
	assert.True(t, storage.ErrDuplicateKey.Has(err))
}

func TestForcedError(t *testing.T) {
	ctx := context.Background()
	store := teststore.New()
	require.NoError(t, store.EnsureCollection(ctx, "buckets", nameIndex))

	store.ForcedError = storage.Error.New("disk on fire")
	err := store.BulkWrite(ctx, "buckets", []storage.Op{
		storage.Insert{Doc: storage.Doc{"_id": "b1", "system": "s1", "name": "photos"}},
	})
	require.Error(t, err)

	store.ForcedError = nil
	docs, err := store.FindLive(ctx, "buckets")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
