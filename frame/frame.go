// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame implements a time-indexed table of typed, nullable
// columns.
//
// A Frame is the common currency of the runview packages: every
// source parses its raw artifact into a Frame, and a loader outer-joins
// the Frames of all sources into a single wide Frame keyed by time.
//
// Column storage is a go-gg table.Table. Each column holds one of
// []sql.NullString, []sql.NullBool, []sql.NullInt64, []sql.NullFloat64
// or []sql.NullTime; an element with Valid == false is a missing value.
// Frames are immutable once built.
package frame

import (
	"fmt"
	"strings"
	"time"

	"github.com/aclements/go-gg/table"
)

// A Label names a column. It is a tuple of strings: plain columns
// have a single element, pivoted columns have one element per pivot
// level. Labels are only joined into a flat name for presentation.
type Label []string

// L returns a Label with the given levels.
func L(levels ...string) Label {
	return Label(levels)
}

// String returns the levels of l joined with "_".
func (l Label) String() string {
	return strings.Join(l, "_")
}

// key returns an unambiguous encoding of l for use as a go-gg column
// name. Levels cannot contain the unit separator.
func (l Label) key() string {
	return strings.Join(l, "\x1f")
}

// Equal reports whether l and o have the same levels.
func (l Label) Equal(o Label) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}

// indexCol is the name of the hidden index column in temporary go-gg
// tables. It cannot collide with a Label key because Label keys never
// start with NUL.
const indexCol = "\x00index"

// A Frame is an immutable table of typed columns indexed by time.
type Frame struct {
	index  []time.Time
	t      *table.Table
	labels []Label
}

// Empty is the Frame with no rows and no columns. It is the identity
// element of Join.
var Empty = &Frame{t: new(table.Table)}

// Len returns the number of rows in f.
func (f *Frame) Len() int {
	return len(f.index)
}

// IsEmpty reports whether f has neither rows nor columns.
func (f *Frame) IsEmpty() bool {
	return len(f.index) == 0 && len(f.labels) == 0
}

// Index returns the index of f. The caller must not modify it.
func (f *Frame) Index() []time.Time {
	return f.index
}

// Labels returns the column labels of f in column order.
func (f *Frame) Labels() []Label {
	return f.labels
}

// Names returns the presentation names of f's columns.
func (f *Frame) Names() []string {
	names := make([]string, len(f.labels))
	for i, l := range f.labels {
		names[i] = l.String()
	}
	return names
}

// Has reports whether f has a column labeled l.
func (f *Frame) Has(l Label) bool {
	return f.t.Column(l.key()) != nil
}

// Column returns the data of the column labeled l, or nil if there is
// no such column. The result is one of the column slice types listed in
// the package documentation. The caller must not modify it.
func (f *Frame) Column(l Label) any {
	return f.t.Column(l.key())
}

// Kind returns the kind of the column labeled l. It panics if f has no
// such column.
func (f *Frame) Kind(l Label) Kind {
	col := f.t.Column(l.key())
	if col == nil {
		panic(fmt.Sprintf("unknown column %q", l))
	}
	return KindOf(col)
}

// Strings returns the values of the column labeled l formatted for
// presentation. Missing values are formatted as NA.
func (f *Frame) Strings(l Label) []string {
	col := f.t.Column(l.key())
	if col == nil {
		panic(fmt.Sprintf("unknown column %q", l))
	}
	out := make([]string, f.Len())
	for i := range out {
		out[i] = FormatCell(col, i)
	}
	return out
}

// WithPrefix returns a copy of f where every column label has prefix
// as its first level. If prefix is "", it returns f.
func (f *Frame) WithPrefix(prefix string) *Frame {
	if prefix == "" {
		return f
	}
	b := NewBuilder(f.index)
	for _, l := range f.labels {
		nl := append(Label{prefix}, l...)
		b.Add(nl, f.Column(l))
	}
	return b.Done()
}

// withIndex returns a go-gg table holding f's columns plus the index
// as the hidden indexCol column.
func (f *Frame) withIndex() *table.Table {
	var b table.Builder
	index := f.index
	if index == nil {
		index = []time.Time{}
	}
	b.Add(indexCol, index)
	for _, l := range f.labels {
		b.Add(l.key(), f.Column(l))
	}
	return b.Done()
}

// SortIndex returns f with its rows stably sorted by index.
func (f *Frame) SortIndex() *Frame {
	if f.Len() < 2 {
		return f
	}
	t := table.Flatten(table.SortBy(f.withIndex(), indexCol))
	b := NewBuilder(t.MustColumn(indexCol).([]time.Time))
	for _, l := range f.labels {
		b.Add(l, t.MustColumn(l.key()))
	}
	return b.Done()
}

// rowCol is the name of the hidden row number column used by Filter.
const rowCol = "\x00row"

// Filter returns the rows of f for which keep returns true, in their
// original order. keep is called with row numbers of f.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	t := f.withIndex()
	rows := make([]int, f.Len())
	for i := range rows {
		rows[i] = i
	}
	t = table.NewBuilder(t).Add(rowCol, rows).Done()
	t = table.Flatten(table.Filter(t, keep, rowCol))
	b := NewBuilder(t.MustColumn(indexCol).([]time.Time))
	for _, l := range f.labels {
		b.Add(l, t.MustColumn(l.key()))
	}
	return b.Done()
}

// A Builder constructs a Frame column by column.
type Builder struct {
	index  []time.Time
	b      table.Builder
	labels []Label
	seen   map[string]int
}

// NewBuilder returns a Builder for a Frame with the given index.
func NewBuilder(index []time.Time) *Builder {
	if index == nil {
		index = []time.Time{}
	}
	return &Builder{index: index, seen: make(map[string]int)}
}

// Add adds a column labeled l holding data. If a column labeled l
// already exists, it is replaced in place. Add panics if data is not
// one of the column types or its length differs from the index.
func (b *Builder) Add(l Label, data any) *Builder {
	if len(l) == 0 {
		panic("empty column label")
	}
	n, ok := ColumnLen(data)
	if !ok {
		panic(fmt.Sprintf("unsupported column type %T for %q", data, l))
	}
	if n != len(b.index) {
		panic(fmt.Sprintf("cannot add column %q with %d elements to frame with %d rows", l, n, len(b.index)))
	}
	k := l.key()
	if i, ok := b.seen[k]; ok {
		b.labels[i] = l
	} else {
		b.seen[k] = len(b.labels)
		b.labels = append(b.labels, l)
	}
	b.b.Add(k, data)
	return b
}

// Done returns the constructed Frame. The Builder must not be used
// afterwards.
func (b *Builder) Done() *Frame {
	f := &Frame{index: b.index, t: b.b.Done(), labels: b.labels}
	b.labels, b.seen = nil, nil
	return f
}
