// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"github.com/google/safehtml/template"
	"github.com/pgrun/runview/frame"
)

var htmlTemplate = template.Must(template.New("").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>runview</title>
<style>
.runview { border-collapse: collapse; font-family: monospace; }
.runview th, .runview td { padding: 0 0.5em; text-align: right; }
.runview td.na { color: #999; }
</style>
</head>
<body>
<table class="runview">
<thead><tr>{{range .Header}}<th>{{.}}{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.TS}}{{range .Cells}}<td{{if .NA}} class="na"{{end}}>{{.Value}}{{end}}</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type htmlCell struct {
	Value string
	NA    bool
}

type htmlRow struct {
	TS    string
	Cells []htmlCell
}

// writeHTML prints f as an HTML document holding one table.
func writeHTML(w io.Writer, f *frame.Frame) error {
	labels := f.Labels()
	rows := make([]htmlRow, f.Len())
	for r, ts := range formatIndex(f) {
		rows[r] = htmlRow{TS: ts, Cells: make([]htmlCell, len(labels))}
	}
	for i, l := range labels {
		col := f.Column(l)
		for r := range rows {
			rows[r].Cells[i] = htmlCell{Value: frame.FormatCell(col, r), NA: frame.IsNA(col, r)}
		}
	}
	return htmlTemplate.Execute(w, struct {
		Header []string
		Rows   []htmlRow
	}{
		Header: append([]string{indexName}, columnNames(f)...),
		Rows:   rows,
	})
}
