// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"database/sql"
	"fmt"
	"os"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/pgrun/runview/frame"
	"github.com/pgrun/runview/runfmt"
)

// DefaultNAValues are the field values that Delimited treats as
// missing by default.
var DefaultNAValues = []string{"", "NaN", "nan", "NULL", "null", "NA", "N/A", "<NA>", "None"}

// DelimitedConfig configures a Delimited source.
type DelimitedConfig struct {
	// Path is the artifact path relative to the run root. The
	// default is the source name plus ".raw".
	Path string

	// Prefix, if set, is prepended to every column label.
	Prefix string

	// Delimiter separates fields. The default is "|".
	Delimiter string

	// IndexColumn names the column holding the row timestamps. If
	// it is "", IndexPosition is used instead.
	IndexColumn string

	// IndexPosition is the position of the index column.
	IndexPosition int

	// DateColumns are data columns that must parse as timestamps.
	DateColumns []string

	// NAValues are the field values read as missing. The default is
	// DefaultNAValues.
	NAValues []string
}

// Delimited is a table printed by psql in unaligned mode: a header
// line, one line per row and an optional "(N rows)" footer. One column
// is the timestamp index; the others become data columns whose kinds
// are inferred with frame.Frame.Convert. Rows are sorted by index.
// Repeated column names get a ".N" suffix.
type Delimited struct {
	Base
	cfg   DelimitedConfig
	comma rune
}

// NewDelimited returns a Delimited source named name.
func NewDelimited(name string, cfg DelimitedConfig) (*Delimited, error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = "|"
	}
	comma, n := utf8.DecodeRuneInString(cfg.Delimiter)
	if n != len(cfg.Delimiter) || comma == '"' || comma == '\n' || comma == '\r' {
		return nil, fmt.Errorf("source %s: invalid delimiter %q", name, cfg.Delimiter)
	}
	if cfg.IndexPosition < 0 {
		return nil, fmt.Errorf("source %s: negative index position %d", name, cfg.IndexPosition)
	}
	if cfg.NAValues == nil {
		cfg.NAValues = DefaultNAValues
	}
	return &Delimited{Base: NewBase(name, cfg.Path, cfg.Prefix), cfg: cfg, comma: comma}, nil
}

func (s *Delimited) Load(path string) (*frame.Frame, error) {
	f, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.finish(f), nil
}

// read parses the table at path without applying the prefix.
func (s *Delimited) read(path string) (*frame.Frame, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	t, err := runfmt.ReadTable(r, path, s.comma)
	if err != nil {
		return nil, err
	}

	header := dedupe(t.Header)
	ix := s.cfg.IndexPosition
	if s.cfg.IndexColumn != "" {
		if ix = slices.Index(header, s.cfg.IndexColumn); ix < 0 {
			return nil, &runfmt.SyntaxError{FileName: path, Line: 1, Msg: fmt.Sprintf("no index column %q", s.cfg.IndexColumn)}
		}
	}
	if ix >= len(header) {
		return nil, &runfmt.SyntaxError{FileName: path, Line: 1, Msg: fmt.Sprintf("index position %d out of range", ix)}
	}
	for _, name := range s.cfg.DateColumns {
		if i := slices.Index(header, name); i < 0 || i == ix {
			return nil, &runfmt.SyntaxError{FileName: path, Line: 1, Msg: fmt.Sprintf("no date column %q", name)}
		}
	}

	index := make([]time.Time, len(t.Rows))
	for i, row := range t.Rows {
		if index[i], err = frame.ParseTime(row[ix]); err != nil {
			return nil, &runfmt.SyntaxError{FileName: path, Line: t.Lines[i], Msg: err.Error()}
		}
	}

	b := frame.NewBuilder(index)
	for c, name := range header {
		if c == ix {
			continue
		}
		col := make([]sql.NullString, len(t.Rows))
		for i, row := range t.Rows {
			if !slices.Contains(s.cfg.NAValues, row[c]) {
				col[i] = sql.NullString{String: row[c], Valid: true}
			}
		}
		if slices.Contains(s.cfg.DateColumns, name) {
			times := make([]sql.NullTime, len(col))
			for i, v := range col {
				if !v.Valid {
					continue
				}
				tm, err := frame.ParseTime(v.String)
				if err != nil {
					return nil, &runfmt.SyntaxError{FileName: path, Line: t.Lines[i], Msg: fmt.Sprintf("column %s: %v", name, err)}
				}
				times[i] = sql.NullTime{Time: tm, Valid: true}
			}
			b.Add(frame.L(name), times)
			continue
		}
		b.Add(frame.L(name), col)
	}
	return b.Done().Convert().SortIndex(), nil
}

// dedupe renames repeated column names by appending ".1", ".2" and so
// on, skipping names already in use.
func dedupe(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		n := name
		for k := 1; used[n]; k++ {
			n = fmt.Sprintf("%s.%d", name, k)
		}
		used[n] = true
		out[i] = n
	}
	return out
}
