// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

func TestPathValue(t *testing.T) {
	doc := storage.Doc{
		"name": "alpha",
		"spec": map[string]interface{}{
			"tier": map[string]interface{}{
				"order": float64(2),
			},
		},
	}

	v, ok := storage.PathValue(doc, "name")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	v, ok = storage.PathValue(doc, "spec.tier.order")
	require.True(t, ok)
	assert.Equal(t, float64(2), v)

	_, ok = storage.PathValue(doc, "spec.missing.order")
	assert.False(t, ok)

	_, ok = storage.PathValue(doc, "name.sub")
	assert.False(t, ok)
}

func TestSetAndDeletePathValue(t *testing.T) {
	doc := storage.Doc{}
	storage.SetPathValue(doc, "a.b.c", "deep")

	v, ok := storage.PathValue(doc, "a.b.c")
	require.True(t, ok)
	assert.Equal(t, "deep", v)

	storage.DeletePathValue(doc, "a.b.c")
	_, ok = storage.PathValue(doc, "a.b.c")
	assert.False(t, ok)

	// deleting through a missing branch is a no-op
	storage.DeletePathValue(doc, "x.y")
}

func TestIndexKey(t *testing.T) {
	fields := storage.IndexFields{"system", "name", "deleted"}

	live := storage.Doc{"system": "sys-1", "name": "photos"}
	liveAgain := storage.Doc{"system": "sys-1", "name": "photos", "deleted": nil}
	tombstone := storage.Doc{"system": "sys-1", "name": "photos", "deleted": "2019-04-01T10:00:00Z"}

	assert.Equal(t, storage.IndexKey(live, fields), storage.IndexKey(liveAgain, fields))
	assert.NotEqual(t, storage.IndexKey(live, fields), storage.IndexKey(tombstone, fields))
}

func TestCloneDoc(t *testing.T) {
	doc := storage.Doc{
		"name": "alpha",
		"tags": []interface{}{"a", "b"},
		"spec": map[string]interface{}{"order": float64(1)},
	}
	clone := storage.CloneDoc(doc)
	require.Equal(t, doc, clone)

	clone["name"] = "beta"
	clone["spec"].(map[string]interface{})["order"] = float64(9)
	clone["tags"].([]interface{})[0] = "z"

	assert.Equal(t, "alpha", doc["name"])
	assert.Equal(t, float64(1), doc["spec"].(map[string]interface{})["order"])
	assert.Equal(t, "a", doc["tags"].([]interface{})[0])
}

func TestApplyUpdate(t *testing.T) {
	doc := storage.Doc{"_id": "id-1", "name": "alpha", "count": float64(1), "stale": true}

	err := storage.ApplyUpdate(doc, storage.Doc{
		"$set":   map[string]interface{}{"name": "beta", "_id": "hijack"},
		"$unset": map[string]interface{}{"stale": ""},
		"$inc":   map[string]interface{}{"count": float64(2)},
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", doc["_id"])
	assert.Equal(t, "beta", doc["name"])
	assert.Equal(t, float64(3), doc["count"])
	_, hasStale := doc["stale"]
	assert.False(t, hasStale)
}

func TestApplyUpdateRejectsUnknownOperator(t *testing.T) {
	doc := storage.Doc{"_id": "id-1"}
	err := storage.ApplyUpdate(doc, storage.Doc{"$rename": map[string]interface{}{"a": "b"}})
	require.Error(t, err)

	err = storage.ApplyUpdate(doc, storage.Doc{"name": "literal"})
	require.Error(t, err)
}

func TestDocID(t *testing.T) {
	assert.Equal(t, storage.ID("id-1"), storage.DocID(storage.Doc{"_id": "id-1"}))
	assert.True(t, storage.DocID(storage.Doc{}).IsZero())
}

func TestIsLive(t *testing.T) {
	assert.True(t, storage.IsLive(storage.Doc{"name": "x"}))
	assert.True(t, storage.IsLive(storage.Doc{"deleted": nil}))
	assert.False(t, storage.IsLive(storage.Doc{"deleted": "2019-04-01T10:00:00Z"}))
}
