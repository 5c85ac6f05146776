// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"database/sql"
	"encoding/gob"
	"fmt"
	"io"
	"time"
)

// snapshot is the gob encoding of a Frame.
type snapshot struct {
	Index   []time.Time
	Columns []snapshotColumn
}

type snapshotColumn struct {
	Label   []string
	Kind    Kind
	Strings []sql.NullString
	Bools   []sql.NullBool
	Ints    []sql.NullInt64
	Floats  []sql.NullFloat64
	Times   []sql.NullTime
}

// Encode writes a lossless snapshot of f to w. Decode reads it back.
func (f *Frame) Encode(w io.Writer) error {
	s := snapshot{Index: f.index}
	for _, l := range f.labels {
		c := snapshotColumn{Label: l}
		switch col := f.Column(l).(type) {
		case []sql.NullString:
			c.Kind, c.Strings = String, col
		case []sql.NullBool:
			c.Kind, c.Bools = Bool, col
		case []sql.NullInt64:
			c.Kind, c.Ints = Int, col
		case []sql.NullFloat64:
			c.Kind, c.Floats = Float, col
		case []sql.NullTime:
			c.Kind, c.Times = Time, col
		}
		s.Columns = append(s.Columns, c)
	}
	return gob.NewEncoder(w).Encode(&s)
}

// Decode reads a Frame snapshot written by Frame.Encode.
func Decode(r io.Reader) (*Frame, error) {
	var s snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	b := NewBuilder(s.Index)
	for _, c := range s.Columns {
		var col any
		switch c.Kind {
		case String:
			col = c.Strings
		case Bool:
			col = c.Bools
		case Int:
			col = c.Ints
		case Float:
			col = c.Floats
		case Time:
			col = c.Times
		default:
			return nil, fmt.Errorf("snapshot column %q: unknown kind %d", Label(c.Label), c.Kind)
		}
		// gob decodes empty slices as nil.
		if n, _ := ColumnLen(col); n != len(s.Index) {
			if n != 0 {
				return nil, fmt.Errorf("snapshot column %q: %d values for %d rows", Label(c.Label), n, len(s.Index))
			}
			col = MakeColumn(c.Kind, len(s.Index))
		}
		b.Add(Label(c.Label), col)
	}
	return b.Done(), nil
}
