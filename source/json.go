// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readJSON decodes the JSON document at path, keeping numbers as
// json.Number.
func readJSON(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// lookup follows a dotted key path through doc. A numeric path
// element indexes an array. lookup returns a *SchemaError naming the
// longest path prefix that could not be followed.
func lookup(file string, doc any, key string) (any, error) {
	elems := strings.Split(key, ".")
	for i, e := range elems {
		switch v := doc.(type) {
		case map[string]any:
			next, ok := v[e]
			if !ok {
				return nil, &SchemaError{File: file, Key: strings.Join(elems[:i+1], ".")}
			}
			doc = next
		case []any:
			n, err := strconv.Atoi(e)
			if err != nil || n < 0 || n >= len(v) {
				return nil, &SchemaError{File: file, Key: strings.Join(elems[:i+1], ".")}
			}
			doc = v[n]
		default:
			return nil, &SchemaError{File: file, Key: strings.Join(elems[:i], "."), Msg: fmt.Sprintf("expected object or array, got %s", jsonType(doc))}
		}
	}
	return doc, nil
}

// records returns the array at key as a list of objects.
func records(file string, doc any, key string) ([]map[string]any, error) {
	v, err := lookup(file, doc, key)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &SchemaError{File: file, Key: key, Msg: "expected array, got " + jsonType(v)}
	}
	out := make([]map[string]any, len(arr))
	for i, e := range arr {
		if out[i], ok = e.(map[string]any); !ok {
			return nil, &SchemaError{File: file, Key: fmt.Sprintf("%s.%d", key, i), Msg: "expected object, got " + jsonType(e)}
		}
	}
	return out, nil
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
