// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"encoding/json"
	"strings"
)

// PathValue resolves a dotted path against a document, descending through
// nested maps. The second return reports whether every segment was present.
func PathValue(doc Doc, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPathValue assigns a dotted path in a document, creating intermediate
// maps as needed.
func SetPathValue(doc Doc, path string, value interface{}) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// DeletePathValue removes a dotted path from a document. Missing segments
// are ignored.
func DeletePathValue(doc Doc, path string) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// CloneDoc makes a deep copy of a document.
func CloneDoc(doc Doc) Doc {
	if doc == nil {
		return nil
	}
	out := make(Doc, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CloneDoc(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// IndexKey computes the serialized tuple key of a document under a unique
// compound index. Missing fields serialize as null so that partial documents
// still produce a stable key.
func IndexKey(doc Doc, fields IndexFields) string {
	tuple := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		v, ok := PathValue(doc, f)
		if !ok {
			v = nil
		}
		tuple = append(tuple, v)
	}
	data, err := json.Marshal(tuple)
	if err != nil {
		// tuple values are JSON kinds by construction
		return ""
	}
	return string(data)
}

// IndexName returns the bucket name of a unique compound index.
func (fields IndexFields) IndexName() string {
	return strings.Join(fields, "+")
}
