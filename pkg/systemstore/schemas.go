// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package systemstore

// Strict document schemas, one per collection. Cross-references are stored as
// objectid strings in durable form; the snapshot resolves them to entity
// links after load.

const systemSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "name"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"name": {"type": "string", "minLength": 1},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

const accountSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "email"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"email": {"type": "string", "minLength": 3},
		"password": {"type": "string"},
		"access_keys": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["access_key", "secret_key"],
				"properties": {
					"access_key": {"type": "string"},
					"secret_key": {"type": "string"}
				}
			}
		},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

const roleSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "account", "system", "role"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"account": {"type": "string", "format": "objectid"},
		"system": {"type": "string", "format": "objectid"},
		"role": {"type": "string", "enum": ["admin", "user", "operator"]},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

const bucketSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "system", "name", "tiering"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"system": {"type": "string", "format": "objectid"},
		"name": {"type": "string", "minLength": 1},
		"tiering": {"type": "string", "format": "objectid"},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

const tieringPolicySchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "system", "name", "tiers"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"system": {"type": "string", "format": "objectid"},
		"name": {"type": "string", "minLength": 1},
		"tiers": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["order", "tier"],
				"properties": {
					"order": {"type": "integer", "minimum": 0},
					"tier": {"type": "string", "format": "objectid"}
				}
			}
		},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

const tierSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "system", "name", "data_placement", "pools"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"system": {"type": "string", "format": "objectid"},
		"name": {"type": "string", "minLength": 1},
		"data_placement": {"type": "string", "enum": ["MIRROR", "SPREAD"]},
		"pools": {
			"type": "array",
			"items": {"type": "string", "format": "objectid"}
		},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`

const poolSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["_id", "system", "name"],
	"properties": {
		"_id": {"type": "string", "format": "objectid"},
		"system": {"type": "string", "format": "objectid"},
		"name": {"type": "string", "minLength": 1},
		"nodes": {
			"type": "array",
			"items": {"type": "string", "format": "objectid"}
		},
		"deleted": {"type": ["string", "null"], "format": "date-time"}
	}
}`
