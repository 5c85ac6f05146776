// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/csv"
	"io"

	"github.com/pgrun/runview/frame"
)

// writeCSV prints f as CSV with a header row. Missing cells are empty.
func writeCSV(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{indexName}, columnNames(f)...)); err != nil {
		return err
	}
	labels := f.Labels()
	cols := make([][]string, len(labels))
	for i, l := range labels {
		for _, v := range frame.TextColumn(f.Column(l)) {
			cols[i] = append(cols[i], v.String)
		}
	}
	index := formatIndex(f)
	row := make([]string, 1+len(labels))
	for r := range index {
		row[0] = index[r]
		for i := range cols {
			row[1+i] = cols[i][r]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
