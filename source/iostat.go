// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"fmt"
	"time"

	"github.com/pgrun/runview/frame"
)

// IOStatConfig configures an IOStat source.
type IOStatConfig struct {
	Path   string
	Prefix string
}

// IOStat is the JSON output of sysstat's iostat -o JSON. Each
// statistics snapshot of the first host becomes a row holding the
// avg-cpu figures and those of the first disk.
type IOStat struct {
	Base
}

// NewIOStat returns an IOStat source named name.
func NewIOStat(name string, cfg IOStatConfig) *IOStat {
	return &IOStat{Base: NewBase(name, cfg.Path, cfg.Prefix)}
}

func (s *IOStat) Load(path string) (*frame.Frame, error) {
	doc, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	const statsKey = "sysstat.hosts.0.statistics"
	stats, err := records(path, doc, statsKey)
	if err != nil {
		return nil, err
	}

	index := make([]time.Time, len(stats))
	rows := make([]map[string]any, len(stats))
	for i, st := range stats {
		key := fmt.Sprintf("%s.%d", statsKey, i)
		ts, ok := st["timestamp"].(string)
		if !ok {
			return nil, &SchemaError{File: path, Key: key + ".timestamp"}
		}
		if index[i], err = frame.ParseTime(ts); err != nil {
			return nil, &SchemaError{File: path, Key: key + ".timestamp", Msg: err.Error()}
		}
		cpu, err := lookup(path, st, "avg-cpu")
		if err != nil {
			return nil, &SchemaError{File: path, Key: key + ".avg-cpu"}
		}
		disk, err := lookup(path, st, "disk.0")
		if err != nil {
			return nil, &SchemaError{File: path, Key: key + ".disk.0"}
		}
		row := make(map[string]any)
		for _, group := range []any{cpu, disk} {
			m, ok := group.(map[string]any)
			if !ok {
				return nil, &SchemaError{File: path, Key: key, Msg: "expected object, got " + jsonType(group)}
			}
			for k, v := range m {
				row[k] = v
			}
		}
		rows[i] = row
	}
	f, err := frame.FromRecords(index, rows)
	if err != nil {
		return nil, err
	}
	return s.finish(f), nil
}
