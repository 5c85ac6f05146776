// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"fmt"

	"github.com/pgrun/runview/frame"
)

// PivotConfig configures a Pivot source.
type PivotConfig struct {
	DelimitedConfig

	// Columns are the dimension columns whose combinations become
	// output columns. It is required.
	Columns []string

	// Values are the columns holding cell values. The default is
	// ["count"].
	Values []string
}

// Pivot is a Delimited table in long form, such as one row per
// (timestamp, backend type, context) from pg_stat_io, reshaped to one
// column per combination of the dimension columns. Combinations absent
// at a timestamp are missing.
type Pivot struct {
	*Delimited
	opts frame.PivotOptions
}

// NewPivot returns a Pivot source named name.
func NewPivot(name string, cfg PivotConfig) (*Pivot, error) {
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("source %s: pivot requires dimension columns", name)
	}
	if len(cfg.Values) == 0 {
		cfg.Values = []string{"count"}
	}
	d, err := NewDelimited(name, cfg.DelimitedConfig)
	if err != nil {
		return nil, err
	}
	return &Pivot{Delimited: d, opts: frame.PivotOptions{Columns: cfg.Columns, Values: cfg.Values}}, nil
}

func (s *Pivot) Load(path string) (*frame.Frame, error) {
	long, err := s.read(path)
	if err != nil {
		return nil, err
	}
	f, err := long.Pivot(s.opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s.finish(f), nil
}
