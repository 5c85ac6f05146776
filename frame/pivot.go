// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"
)

// PivotOptions configures Frame.Pivot.
type PivotOptions struct {
	// Columns are the dimension columns whose value combinations
	// become output columns.
	Columns []string

	// Values are the columns whose values fill the output cells.
	Values []string

	// Sum combines duplicate cells by summing them. Without Sum,
	// a duplicate cell is an error. Sum requires numeric values.
	Sum bool

	// Fill sets cells for absent combinations to zero instead of
	// leaving them missing. Fill requires numeric values.
	Fill bool
}

// Pivot reshapes f from long form to wide form.
//
// The result has one row per distinct index value of f, in increasing
// order, and one column per value column and observed combination of
// the dimension columns. Output labels are (value, dim1, dim2, ...),
// or (dim1, dim2, ...) if there is only one value column, ordered by
// value column and then lexicographically by combination. A missing
// dimension value is rendered as NA and is distinct from every
// present value, including the empty string.
func (f *Frame) Pivot(opts PivotOptions) (*Frame, error) {
	if len(opts.Columns) == 0 {
		return nil, fmt.Errorf("pivot: no dimension columns")
	}
	if len(opts.Values) == 0 {
		return nil, fmt.Errorf("pivot: no value columns")
	}
	dims := make([]any, len(opts.Columns))
	for i, name := range opts.Columns {
		if dims[i] = f.Column(L(name)); dims[i] == nil {
			return nil, fmt.Errorf("pivot: unknown column %q", name)
		}
	}
	vals := make([]any, len(opts.Values))
	for i, name := range opts.Values {
		if vals[i] = f.Column(L(name)); vals[i] == nil {
			return nil, fmt.Errorf("pivot: unknown column %q", name)
		}
		if k := KindOf(vals[i]); (opts.Sum || opts.Fill) && k != Int && k != Float {
			return nil, fmt.Errorf("pivot: cannot sum or fill %s column %q", k, name)
		}
	}

	// Assign output rows.
	var index []time.Time
	rowOf := make([]int, f.Len())
	for _, i := range sortedOrder(f.index) {
		if n := len(index); n == 0 || !index[n-1].Equal(f.index[i]) {
			index = append(index, f.index[i])
		}
		rowOf[i] = len(index) - 1
	}

	// Collect and order the combinations.
	comboKeys := make([]string, f.Len())
	combos := make(map[string]Label)
	var key strings.Builder
	for i := range comboKeys {
		c := make(Label, len(dims))
		key.Reset()
		for j, d := range dims {
			if IsNA(d, i) {
				c[j] = NA
				key.WriteString("\x00\x1f")
			} else {
				c[j] = formatValue(d, i)
				key.WriteString("\x01" + c[j] + "\x1f")
			}
		}
		comboKeys[i] = key.String()
		combos[comboKeys[i]] = c
	}
	keys := make([]string, 0, len(combos))
	for k := range combos {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := slices.Compare(combos[a], combos[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	order := make([]Label, len(keys))
	colOf := make(map[string]int, len(keys))
	for i, k := range keys {
		order[i] = combos[k]
		colOf[k] = i
		if i > 0 && order[i].Equal(order[i-1]) {
			return nil, fmt.Errorf("pivot: combination %q is both missing and present", order[i].String())
		}
	}

	b := NewBuilder(index)
	for vi, val := range vals {
		out := make([]any, len(order))
		set := make([][]bool, len(order))
		for ci := range out {
			out[ci] = MakeColumn(KindOf(val), len(index))
			set[ci] = make([]bool, len(index))
		}
		for i := range rowOf {
			ci, row := colOf[comboKeys[i]], rowOf[i]
			if set[ci][row] && !opts.Sum {
				return nil, fmt.Errorf("pivot: duplicate entry for %q at %s", order[ci].String(), index[row].Format(time.RFC3339Nano))
			}
			set[ci][row] = true
			if opts.Sum {
				addCell(out[ci], row, val, i)
			} else if !IsNA(val, i) {
				copyCell(out[ci], row, val, i)
			}
		}
		for ci, c := range order {
			if opts.Fill {
				fillZero(out[ci])
			}
			l := c
			if len(vals) > 1 {
				l = append(Label{opts.Values[vi]}, c...)
			}
			b.Add(l, out[ci])
		}
	}
	return b.Done(), nil
}

// copyCell sets dst[i] = src[j]. dst and src must have the same type.
func copyCell(dst any, i int, src any, j int) {
	switch dst := dst.(type) {
	case []sql.NullString:
		dst[i] = src.([]sql.NullString)[j]
	case []sql.NullBool:
		dst[i] = src.([]sql.NullBool)[j]
	case []sql.NullInt64:
		dst[i] = src.([]sql.NullInt64)[j]
	case []sql.NullFloat64:
		dst[i] = src.([]sql.NullFloat64)[j]
	case []sql.NullTime:
		dst[i] = src.([]sql.NullTime)[j]
	default:
		panic(fmt.Sprintf("unsupported column type %T", dst))
	}
}

// addCell adds src[j] to dst[i] and marks dst[i] valid. A missing
// src[j] adds zero.
func addCell(dst any, i int, src any, j int) {
	switch dst := dst.(type) {
	case []sql.NullInt64:
		dst[i].Int64 += src.([]sql.NullInt64)[j].Int64
		dst[i].Valid = true
	case []sql.NullFloat64:
		dst[i].Float64 += src.([]sql.NullFloat64)[j].Float64
		dst[i].Valid = true
	default:
		panic(fmt.Sprintf("cannot sum column type %T", dst))
	}
}

// fillZero sets every missing element of a numeric column to zero.
func fillZero(col any) {
	switch col := col.(type) {
	case []sql.NullInt64:
		for i := range col {
			col[i].Valid = true
		}
	case []sql.NullFloat64:
		for i := range col {
			col[i].Valid = true
		}
	default:
		panic(fmt.Sprintf("cannot fill column type %T", col))
	}
}
