// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aclements/go-gg/table"
	"github.com/pgrun/runview/frame"
)

// indexName is the header of the index column.
const indexName = "ts"

// columnNames returns the header of f's data columns. Labels whose
// presentation names coincide are disambiguated by position.
func columnNames(f *frame.Frame) []string {
	names := f.Names()
	seen := map[string]bool{indexName: true}
	for i, name := range names {
		if seen[name] {
			names[i] = fmt.Sprintf("%s#%d", name, i)
		}
		seen[names[i]] = true
	}
	return names
}

func formatIndex(f *frame.Frame) []string {
	out := make([]string, f.Len())
	for i, t := range f.Index() {
		out[i] = t.Format(time.RFC3339Nano)
	}
	return out
}

// writeText prints f as an aligned text table.
func writeText(w io.Writer, f *frame.Frame) error {
	var b table.Builder
	b.Add(indexName, formatIndex(f))
	for i, name := range columnNames(f) {
		b.Add(name, f.Strings(f.Labels()[i]))
	}
	return table.Fprint(w, b.Done())
}

// writeKinds prints the label and kind of each column of f.
func writeKinds(w io.Writer, f *frame.Frame) error {
	var b table.Builder
	labels := f.Labels()
	kinds := make([]string, len(labels))
	for i, l := range labels {
		kinds[i] = f.Kind(l).String()
	}
	b.Add("column", columnNames(f)).Add("kind", kinds)
	return table.Fprint(w, b.Done())
}
