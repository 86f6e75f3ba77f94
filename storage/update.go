// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

// ApplyUpdate applies an operator update document ($set, $unset, $inc) to a
// document in place. Updates with non-operator top-level keys are rejected;
// literal replacements must be wrapped as $set by the caller.
func ApplyUpdate(doc Doc, update Doc) error {
	for op, arg := range update {
		fields, ok := arg.(map[string]interface{})
		if !ok {
			return Error.New("malformed update operator %q", op)
		}
		switch op {
		case "$set":
			for path, value := range fields {
				if path == "_id" {
					continue
				}
				SetPathValue(doc, path, value)
			}
		case "$unset":
			for path := range fields {
				DeletePathValue(doc, path)
			}
		case "$inc":
			for path, value := range fields {
				delta, ok := toFloat(value)
				if !ok {
					return Error.New("non-numeric $inc for %q", path)
				}
				cur, _ := PathValue(doc, path)
				base, ok := toFloat(cur)
				if cur != nil && !ok {
					return Error.New("$inc on non-numeric field %q", path)
				}
				SetPathValue(doc, path, base+delta)
			}
		default:
			return Error.New("unsupported update operator %q", op)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
