// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Convert returns f with each column converted to its narrowest
// lossless kind.
//
// A String column becomes Int, Float, Bool or Time, in that order of
// preference, if every non-missing value parses as that kind. A Float
// column becomes Int if every non-missing value is integral. Columns
// with no values keep their kind.
func (f *Frame) Convert() *Frame {
	b := NewBuilder(f.index)
	for _, l := range f.labels {
		b.Add(l, ConvertColumn(f.Column(l)))
	}
	return b.Done()
}

// ConvertColumn returns col converted to its narrowest lossless kind,
// as described for Frame.Convert.
func ConvertColumn(col any) any {
	switch col := col.(type) {
	case []sql.NullString:
		return convertStrings(col)
	case []sql.NullFloat64:
		if out, ok := floatsToInts(col); ok {
			return out
		}
	}
	return col
}

func convertStrings(col []sql.NullString) any {
	valid := 0
	for _, v := range col {
		if v.Valid {
			valid++
		}
	}
	if valid == 0 {
		return col
	}
	if out, ok := parseAll(col, parseInt); ok {
		return out
	}
	if out, ok := parseAll(col, parseFloat); ok {
		return out
	}
	if out, ok := parseAll(col, parseBool); ok {
		return out
	}
	if out, ok := parseAll(col, parseTimeValue); ok {
		return out
	}
	return col
}

func parseAll[T any](col []sql.NullString, parse func(string) (T, bool)) ([]T, bool) {
	out := make([]T, len(col))
	for i, v := range col {
		if !v.Valid {
			continue
		}
		x, ok := parse(v.String)
		if !ok {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

func parseInt(s string) (sql.NullInt64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return sql.NullInt64{Int64: v, Valid: true}, err == nil
}

func parseFloat(s string) (sql.NullFloat64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return sql.NullFloat64{Float64: v, Valid: true}, err == nil
}

func parseBool(s string) (sql.NullBool, bool) {
	switch strings.ToLower(s) {
	case "true", "t":
		return sql.NullBool{Bool: true, Valid: true}, true
	case "false", "f":
		return sql.NullBool{Bool: false, Valid: true}, true
	}
	return sql.NullBool{}, false
}

func parseTimeValue(s string) (sql.NullTime, bool) {
	t, err := ParseTime(s)
	return sql.NullTime{Time: t, Valid: true}, err == nil
}

func floatsToInts(col []sql.NullFloat64) ([]sql.NullInt64, bool) {
	out := make([]sql.NullInt64, len(col))
	seen := false
	for i, v := range col {
		if !v.Valid {
			continue
		}
		x := v.Float64
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			// Also rejects NaN and infinities.
			return nil, false
		}
		out[i] = sql.NullInt64{Int64: int64(x), Valid: true}
		seen = true
	}
	return out, seen
}

// timeLayouts are the timestamp layouts accepted by ParseTime, most
// specific first. Layouts without a zone are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05,999999-0700",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-0700",
	"01/02/2006 03:04:05 PM",
	"01/02/06 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseTime parses a timestamp as written by PostgreSQL, sysstat and
// the common ISO 8601 variants.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}
