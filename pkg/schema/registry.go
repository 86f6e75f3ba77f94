// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package schema

import (
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zeebo/errs"

	"github.com/MeridianExplorer/noobaa-core/storage"
)

var (
	// Error is the error class for the schema registry.
	Error = errs.Class("schema error")

	// ErrValidation is returned when a document fails its collection schema.
	ErrValidation = errs.Class("validation error")
)

func init() {
	gojsonschema.FormatCheckers.Add("objectid", objectIDFormatChecker{})
}

// objectIDFormatChecker accepts canonical document identifiers.
type objectIDFormatChecker struct{}

// IsFormat implements gojsonschema.FormatChecker.
func (objectIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	id, err := uuid.Parse(s)
	return err == nil && id.String() == s
}

// Registry holds one compiled validator per collection.
type Registry struct {
	validators map[string]*gojsonschema.Schema
}

// NewRegistry compiles the given collection -> JSON schema sources. Schemas
// are strict: unknown fields are rejected by the schema's
// additionalProperties declaration.
func NewRegistry(sources map[string]string) (*Registry, error) {
	validators := make(map[string]*gojsonschema.Schema, len(sources))
	for collection, source := range sources {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
		if err != nil {
			return nil, Error.New("compiling schema for %q: %v", collection, err)
		}
		validators[collection] = compiled
	}
	return &Registry{validators: validators}, nil
}

// Validate checks a document against its collection schema. A nil error
// means the document is valid.
func (registry *Registry) Validate(collection string, doc storage.Doc) error {
	validator, ok := registry.validators[collection]
	if !ok {
		return ErrValidation.New("no schema for collection %q", collection)
	}
	result, err := validator.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return ErrValidation.New("%q: %v", collection, err)
	}
	if result.Valid() {
		return nil
	}
	var group errs.Group
	for _, desc := range result.Errors() {
		group.Add(ErrValidation.New("%q: %s", collection, desc.String()))
	}
	return group.Err()
}
