// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianExplorer/noobaa-core/pkg/schema"
	"github.com/MeridianExplorer/noobaa-core/storage"
)

const poolSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "name"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"name": {"type": "string", "minLength": 1},
		"system": {"type": "string", "format": "objectid"},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry, err := schema.NewRegistry(map[string]string{"pools": poolSchema})
	require.NoError(t, err)
	return registry
}

func TestValidateAccepts(t *testing.T) {
	registry := newRegistry(t)

	err := registry.Validate("pools", storage.Doc{
		"_id":    storage.NewID().String(),
		"name":   "default-pool",
		"system": storage.NewID().String(),
	})
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownFields(t *testing.T) {
	registry := newRegistry(t)

	err := registry.Validate("pools", storage.Doc{
		"_id":    storage.NewID().String(),
		"name":   "default-pool",
		"sneaky": true,
	})
	require.Error(t, err)
	assert.True(t, schema.ErrValidation.Has(err))
}

func TestValidateRejectsBadObjectID(t *testing.T) {
	registry := newRegistry(t)

	err := registry.Validate("pools", storage.Doc{
		"_id":  "definitely-not-an-id",
		"name": "default-pool",
	})
	require.Error(t, err)
	assert.True(t, schema.ErrValidation.Has(err))
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	registry := newRegistry(t)

	err := registry.Validate("pools", storage.Doc{"_id": storage.NewID().String()})
	require.Error(t, err)
	assert.True(t, schema.ErrValidation.Has(err))
}

func TestValidateUnknownCollection(t *testing.T) {
	registry := newRegistry(t)

	err := registry.Validate("unicorns", storage.Doc{})
	require.Error(t, err)
	assert.True(t, schema.ErrValidation.Has(err))
}

func TestValidateAllowsNullDeleted(t *testing.T) {
	registry := newRegistry(t)

	err := registry.Validate("pools", storage.Doc{
		"_id":     storage.NewID().String(),
		"name":    "default-pool",
		"deleted": nil,
	})
	assert.NoError(t, err)
}
