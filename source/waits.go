// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/pgrun/runview/frame"
)

// WaitsConfig configures a Waits source.
type WaitsConfig struct {
	DelimitedConfig

	// ExcludeStates are backend states whose rows are dropped. The
	// default is "idle" and "idle in transaction".
	ExcludeStates []string

	// ExcludeEventTypes are wait event types whose rows are dropped.
	// The default is "Activity".
	ExcludeEventTypes []string

	// Dimensions are the pivot columns. Rows missing any of them are
	// dropped. The default is wait_event_type and wait_event.
	Dimensions []string

	// Value is the column summed into each cell. The default is
	// "count".
	Value string
}

// Waits is a sampled pg_stat_activity wait-event aggregate: rows of
// (ts, state, wait_event_type, wait_event, count). Idle backends and
// activity waits are dropped, and the counts are summed into one
// column per wait event, with zero where an event was not observed.
type Waits struct {
	*Delimited
	cfg WaitsConfig
}

// NewWaits returns a Waits source named name.
func NewWaits(name string, cfg WaitsConfig) (*Waits, error) {
	if cfg.ExcludeStates == nil {
		cfg.ExcludeStates = []string{"idle", "idle in transaction"}
	}
	if cfg.ExcludeEventTypes == nil {
		cfg.ExcludeEventTypes = []string{"Activity"}
	}
	if len(cfg.Dimensions) == 0 {
		cfg.Dimensions = []string{"wait_event_type", "wait_event"}
	}
	if cfg.Value == "" {
		cfg.Value = "count"
	}
	d, err := NewDelimited(name, cfg.DelimitedConfig)
	if err != nil {
		return nil, err
	}
	return &Waits{Delimited: d, cfg: cfg}, nil
}

func (s *Waits) Load(path string) (*frame.Frame, error) {
	long, err := s.read(path)
	if err != nil {
		return nil, err
	}
	column := func(name string) (any, error) {
		col := long.Column(frame.L(name))
		if col == nil {
			return nil, fmt.Errorf("%s: no column %q", path, name)
		}
		return col, nil
	}

	var keeps []func(int) bool
	exclude := func(name string, values []string) error {
		if len(values) == 0 {
			return nil
		}
		col, err := column(name)
		if err != nil {
			return err
		}
		strs, ok := col.([]sql.NullString)
		if !ok {
			// Not textual, so it cannot hold any excluded value.
			return nil
		}
		keeps = append(keeps, func(i int) bool {
			return !strs[i].Valid || !slices.Contains(values, strs[i].String)
		})
		return nil
	}
	if err := exclude("state", s.cfg.ExcludeStates); err != nil {
		return nil, err
	}
	if err := exclude("wait_event_type", s.cfg.ExcludeEventTypes); err != nil {
		return nil, err
	}
	for _, name := range s.cfg.Dimensions {
		col, err := column(name)
		if err != nil {
			return nil, err
		}
		keeps = append(keeps, func(i int) bool { return !frame.IsNA(col, i) })
	}
	if _, err := column(s.cfg.Value); err != nil {
		return nil, err
	}

	active := long.Filter(func(i int) bool {
		for _, keep := range keeps {
			if !keep(i) {
				return false
			}
		}
		return true
	})
	f, err := active.Pivot(frame.PivotOptions{
		Columns: s.cfg.Dimensions,
		Values:  []string{s.cfg.Value},
		Sum:     true,
		Fill:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s.finish(f), nil
}
