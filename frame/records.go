// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// FromRecords returns a Frame with one row per record and one column
// per distinct record key, in sorted key order. records[i] is the row
// at index[i]. Records are typically decoded by a json.Decoder with
// UseNumber set.
//
// The kind of each column is chosen from its values: numbers that all
// parse as integers produce an Int column, other numbers a Float
// column, strings a String column and booleans a Bool column. A column
// holding more than one of these becomes a String column. Absent keys
// and JSON nulls are missing values.
func FromRecords(index []time.Time, records []map[string]any) (*Frame, error) {
	if len(index) != len(records) {
		return nil, fmt.Errorf("%d index values for %d records", len(index), len(records))
	}
	keys := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			keys[k] = true
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	b := NewBuilder(index)
	vals := make([]any, len(records))
	for _, name := range names {
		for i, r := range records {
			vals[i] = r[name]
		}
		b.Add(L(name), recordColumn(vals))
	}
	return b.Done(), nil
}

func recordColumn(vals []any) any {
	var nums, strs, bools, other bool
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case json.Number, float64:
			nums = true
		case string:
			strs = true
		case bool:
			bools = true
		default:
			other = true
		}
	}
	switch {
	case nums && !strs && !bools && !other:
		if out, ok := parseAll(recordStrings(vals), parseInt); ok {
			return out
		}
		out, _ := parseAll(recordStrings(vals), parseFloat)
		return out
	case bools && !nums && !strs && !other:
		out := make([]sql.NullBool, len(vals))
		for i, v := range vals {
			if v, ok := v.(bool); ok {
				out[i] = sql.NullBool{Bool: v, Valid: true}
			}
		}
		return out
	}
	return recordStrings(vals)
}

// recordStrings formats decoded JSON values as a String column.
func recordStrings(vals []any) []sql.NullString {
	out := make([]sql.NullString, len(vals))
	for i, v := range vals {
		var s string
		switch v := v.(type) {
		case nil:
			continue
		case json.Number:
			s = v.String()
		case float64:
			s = strconv.FormatFloat(v, 'g', -1, 64)
		case string:
			s = v
		case bool:
			s = strconv.FormatBool(v)
		default:
			buf, err := json.Marshal(v)
			if err != nil {
				s = fmt.Sprint(v)
			} else {
				s = string(buf)
			}
		}
		out[i] = sql.NullString{String: s, Valid: true}
	}
	return out
}
