// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// A Kind is the type of the values in a column.
type Kind int

const (
	String Kind = iota
	Bool
	Int
	Float
	Time
)

var kindNames = [...]string{
	String: "string",
	Bool:   "bool",
	Int:    "int64",
	Float:  "float64",
	Time:   "time",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind returns the Kind named s, as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown column kind %q", s)
}

// KindOf returns the Kind of column data col. It panics if col is not
// one of the column types.
func KindOf(col any) Kind {
	switch col.(type) {
	case []sql.NullString:
		return String
	case []sql.NullBool:
		return Bool
	case []sql.NullInt64:
		return Int
	case []sql.NullFloat64:
		return Float
	case []sql.NullTime:
		return Time
	}
	panic(fmt.Sprintf("unsupported column type %T", col))
}

// MakeColumn returns a column of kind k with n missing values.
func MakeColumn(k Kind, n int) any {
	switch k {
	case String:
		return make([]sql.NullString, n)
	case Bool:
		return make([]sql.NullBool, n)
	case Int:
		return make([]sql.NullInt64, n)
	case Float:
		return make([]sql.NullFloat64, n)
	case Time:
		return make([]sql.NullTime, n)
	}
	panic(fmt.Sprintf("unknown column kind %d", k))
}

// ColumnLen returns the length of col and whether col is one of the
// column types.
func ColumnLen(col any) (int, bool) {
	switch col := col.(type) {
	case []sql.NullString:
		return len(col), true
	case []sql.NullBool:
		return len(col), true
	case []sql.NullInt64:
		return len(col), true
	case []sql.NullFloat64:
		return len(col), true
	case []sql.NullTime:
		return len(col), true
	}
	return 0, false
}

// IsNA reports whether element i of col is missing.
func IsNA(col any, i int) bool {
	switch col := col.(type) {
	case []sql.NullString:
		return !col[i].Valid
	case []sql.NullBool:
		return !col[i].Valid
	case []sql.NullInt64:
		return !col[i].Valid
	case []sql.NullFloat64:
		return !col[i].Valid
	case []sql.NullTime:
		return !col[i].Valid
	}
	panic(fmt.Sprintf("unsupported column type %T", col))
}

// NA is the presentation of a missing value.
const NA = "<NA>"

// FormatCell formats element i of col for presentation. Missing
// values are formatted as NA.
func FormatCell(col any, i int) string {
	if IsNA(col, i) {
		return NA
	}
	return formatValue(col, i)
}

// formatValue formats the non-missing element i of col losslessly.
// parseValue inverts it.
func formatValue(col any, i int) string {
	switch col := col.(type) {
	case []sql.NullString:
		return col[i].String
	case []sql.NullBool:
		return strconv.FormatBool(col[i].Bool)
	case []sql.NullInt64:
		return strconv.FormatInt(col[i].Int64, 10)
	case []sql.NullFloat64:
		return strconv.FormatFloat(col[i].Float64, 'g', -1, 64)
	case []sql.NullTime:
		return col[i].Time.Format(time.RFC3339Nano)
	}
	panic(fmt.Sprintf("unsupported column type %T", col))
}

// Value returns element i of col as a string, bool, int64, float64 or
// time.Time, or nil if it is missing.
func Value(col any, i int) any {
	switch col := col.(type) {
	case []sql.NullString:
		if col[i].Valid {
			return col[i].String
		}
	case []sql.NullBool:
		if col[i].Valid {
			return col[i].Bool
		}
	case []sql.NullInt64:
		if col[i].Valid {
			return col[i].Int64
		}
	case []sql.NullFloat64:
		if col[i].Valid {
			return col[i].Float64
		}
	case []sql.NullTime:
		if col[i].Valid {
			return col[i].Time
		}
	default:
		panic(fmt.Sprintf("unsupported column type %T", col))
	}
	return nil
}

// parseValue parses s, as formatted by formatValue, into a value of
// kind k.
func parseValue(k Kind, s string) (any, error) {
	switch k {
	case String:
		return sql.NullString{String: s, Valid: true}, nil
	case Bool:
		v, err := strconv.ParseBool(s)
		return sql.NullBool{Bool: v, Valid: err == nil}, err
	case Int:
		v, err := strconv.ParseInt(s, 10, 64)
		return sql.NullInt64{Int64: v, Valid: err == nil}, err
	case Float:
		v, err := strconv.ParseFloat(s, 64)
		return sql.NullFloat64{Float64: v, Valid: err == nil}, err
	case Time:
		v, err := time.Parse(time.RFC3339Nano, s)
		return sql.NullTime{Time: v, Valid: err == nil}, err
	}
	return nil, fmt.Errorf("unknown column kind %d", k)
}

// TextColumn returns col encoded as lossless text. ColumnFromText
// inverts it.
func TextColumn(col any) []sql.NullString {
	n, ok := ColumnLen(col)
	if !ok {
		panic(fmt.Sprintf("unsupported column type %T", col))
	}
	out := make([]sql.NullString, n)
	for i := range out {
		if !IsNA(col, i) {
			out[i] = sql.NullString{String: formatValue(col, i), Valid: true}
		}
	}
	return out
}

// ColumnFromText decodes a column of kind k from the text encoding
// produced by TextColumn.
func ColumnFromText(k Kind, text []sql.NullString) (any, error) {
	col := MakeColumn(k, len(text))
	for i, s := range text {
		if !s.Valid {
			continue
		}
		v, err := parseValue(k, s.String)
		if err != nil {
			return nil, err
		}
		setValue(col, i, v)
	}
	return col, nil
}

// setValue stores v, which must be the element type of col, at index i.
func setValue(col any, i int, v any) {
	switch col := col.(type) {
	case []sql.NullString:
		col[i] = v.(sql.NullString)
	case []sql.NullBool:
		col[i] = v.(sql.NullBool)
	case []sql.NullInt64:
		col[i] = v.(sql.NullInt64)
	case []sql.NullFloat64:
		col[i] = v.(sql.NullFloat64)
	case []sql.NullTime:
		col[i] = v.(sql.NullTime)
	default:
		panic(fmt.Sprintf("unsupported column type %T", col))
	}
}

// selectRows returns a column w such that w[i] = col[idx[i]], or a
// missing value where idx[i] < 0.
func selectRows(col any, idx []int) any {
	switch col := col.(type) {
	case []sql.NullString:
		return selectNullable(col, idx)
	case []sql.NullBool:
		return selectNullable(col, idx)
	case []sql.NullInt64:
		return selectNullable(col, idx)
	case []sql.NullFloat64:
		return selectNullable(col, idx)
	case []sql.NullTime:
		return selectNullable(col, idx)
	}
	panic(fmt.Sprintf("unsupported column type %T", col))
}

func selectNullable[T any](col []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, x := range idx {
		if x >= 0 {
			out[i] = col[x]
		}
	}
	return out
}
