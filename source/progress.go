// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"regexp"
)

// ProgressPattern matches a line of pgbench --progress output, such as
//
//	progress: 560.0 s, 55376.5 tps, lat 0.866 ms stddev 0.268, 0 failed
//
// The failed count is absent in output from pgbench before version 15.
var ProgressPattern = regexp.MustCompile(
	`progress: (?P<ts>\d+\.\d+) s, ` +
		`(?P<tps>\d+\.\d+) tps, ` +
		`lat (?P<lat>\d+\.\d+) ms stddev (?P<lat_stddev>\d+\.\d+|NaN)` +
		`(?:, (?P<failed>\d+) failed)?`)

// ProgressConfig configures a Progress source.
type ProgressConfig struct {
	Path   string
	Prefix string
}

// NewProgress returns a Regexp source named name that reads pgbench
// progress output. The index is the ts field in seconds since the
// Unix epoch (pgbench --progress-timestamp), and every other field is
// numeric, with NaN as missing.
func NewProgress(name string, cfg ProgressConfig) *Regexp {
	s, err := NewRegexp(name, RegexpConfig{
		Path:        cfg.Path,
		Prefix:      cfg.Prefix,
		Pattern:     ProgressPattern,
		Index:       "ts",
		CoerceIndex: EpochSeconds,
		Coerce:      Numeric,
	})
	if err != nil {
		// ProgressPattern has a ts group.
		panic(err)
	}
	return s
}
