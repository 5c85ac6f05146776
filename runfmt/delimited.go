// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runfmt

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// A Table is a delimited table read by ReadTable. Every row has
// exactly len(Header) fields.
type Table struct {
	Header []string
	Rows   [][]string

	// Lines[i] is the 1-based line number of Rows[i].
	Lines []int
}

// rowCountFooter matches the footer psql prints after a table.
var rowCountFooter = regexp.MustCompile(`^\(\d+ rows?\)$`)

// ReadTable reads a delimited table with a header line, as printed by
// psql in unaligned mode. comma is the field delimiter. Fields are
// trimmed of surrounding space. Empty lines and the "(N rows)" footer
// are skipped. fileName is used in error messages.
//
// A row whose field count differs from the header is a *SyntaxError.
func ReadTable(r io.Reader, fileName string, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := new(Table)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &SyntaxError{fileName, perr.Line, perr.Err.Error()}
			}
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
		line, _ := cr.FieldPos(0)
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		if len(rec) == 1 && rowCountFooter.MatchString(rec[0]) {
			continue
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		if len(rec) != len(t.Header) {
			return nil, &SyntaxError{fileName, line, fmt.Sprintf("expected %d fields, got %d", len(t.Header), len(rec))}
		}
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, line)
	}
	if t.Header == nil {
		return nil, &SyntaxError{fileName, 1, "missing header"}
	}
	return t, nil
}
