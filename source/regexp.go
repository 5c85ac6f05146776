// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/pgrun/runview/frame"
	"github.com/pgrun/runview/runfmt"
)

// RegexpConfig configures a Regexp source.
type RegexpConfig struct {
	// Path is the artifact path relative to the run root. The
	// default is the source name plus ".raw".
	Path string

	// Prefix, if set, is prepended to every column label.
	Prefix string

	// Pattern must match at the start of every line. Its named
	// capture groups become columns.
	Pattern *regexp.Regexp

	// Index names the capture group holding the row timestamps.
	Index string

	// CoerceIndex converts the index values to timestamps. The
	// default parses each value with frame.ParseTime.
	CoerceIndex func(values []string) ([]time.Time, error)

	// Coerce converts the values of the named group to a column.
	// The default keeps them as strings, with "" as missing.
	Coerce func(name string, values []string) (any, error)
}

// Regexp is a line-oriented log where every line matches a regular
// expression. Each named capture group is a column.
type Regexp struct {
	Base
	cfg RegexpConfig
}

// NewRegexp returns a Regexp source named name.
func NewRegexp(name string, cfg RegexpConfig) (*Regexp, error) {
	if cfg.Pattern == nil {
		return nil, fmt.Errorf("source %s: no pattern", name)
	}
	if !slices.Contains(cfg.Pattern.SubexpNames(), cfg.Index) || cfg.Index == "" {
		return nil, fmt.Errorf("source %s: pattern has no group %q for the index", name, cfg.Index)
	}
	if cfg.CoerceIndex == nil {
		cfg.CoerceIndex = ParseTimes
	}
	if cfg.Coerce == nil {
		cfg.Coerce = Strings
	}
	return &Regexp{Base: NewBase(name, cfg.Path, cfg.Prefix), cfg: cfg}, nil
}

func (s *Regexp) Load(path string) (*frame.Frame, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	pr := runfmt.NewPatternReader(r, path, s.cfg.Pattern)
	names := pr.Names()
	cols := make([][]string, len(names))
	for pr.Scan() {
		for i, v := range pr.Fields() {
			cols[i] = append(cols[i], v)
		}
	}
	if err := pr.Err(); err != nil {
		return nil, err
	}

	ix := slices.Index(names, s.cfg.Index)
	index, err := s.cfg.CoerceIndex(cols[ix])
	if err != nil {
		return nil, fmt.Errorf("%s: index %s: %w", path, s.cfg.Index, err)
	}
	if len(index) != len(cols[ix]) {
		return nil, fmt.Errorf("%s: index %s: coerced %d values to %d timestamps", path, s.cfg.Index, len(cols[ix]), len(index))
	}
	b := frame.NewBuilder(index)
	for i, name := range names {
		if i == ix {
			continue
		}
		col, err := s.cfg.Coerce(name, cols[i])
		if err != nil {
			return nil, fmt.Errorf("%s: column %s: %w", path, name, err)
		}
		if n, ok := frame.ColumnLen(col); !ok || n != len(index) {
			return nil, fmt.Errorf("%s: column %s: coerced to %T with %d values, want a column of %d", path, name, col, n, len(index))
		}
		b.Add(frame.L(name), col)
	}
	return s.finish(b.Done()), nil
}

// ParseTimes converts values with frame.ParseTime.
func ParseTimes(values []string) ([]time.Time, error) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		t, err := frame.ParseTime(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// TimeLayout returns a function that converts values with time.Parse
// and layout.
func TimeLayout(layout string) func([]string) ([]time.Time, error) {
	return func(values []string) ([]time.Time, error) {
		out := make([]time.Time, len(values))
		for i, v := range values {
			t, err := time.Parse(layout, v)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}
}

// EpochSeconds converts values holding seconds since the Unix epoch,
// possibly fractional, to UTC timestamps.
func EpochSeconds(values []string) ([]time.Time, error) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return nil, fmt.Errorf("invalid epoch time %q", v)
		}
		out[i] = epochTime(secs)
	}
	return out, nil
}

// epochTime returns the UTC time secs seconds after the Unix epoch,
// rounded to the nearest microsecond.
func epochTime(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	us := math.Round(frac * 1e6)
	return time.Unix(int64(whole), int64(us)*int64(time.Microsecond)).UTC()
}

// Strings returns values as a String column, with "" as missing.
func Strings(name string, values []string) (any, error) {
	out := make([]sql.NullString, len(values))
	for i, v := range values {
		if v != "" {
			out[i] = sql.NullString{String: v, Valid: true}
		}
	}
	return out, nil
}

// Numeric returns values as a Float column. Values that do not parse
// as numbers, and NaN, are missing.
func Numeric(name string, values []string) (any, error) {
	out := make([]sql.NullFloat64, len(values))
	for i, v := range values {
		x, err := strconv.ParseFloat(v, 64)
		if err == nil && !math.IsNaN(x) {
			out[i] = sql.NullFloat64{Float64: x, Valid: true}
		}
	}
	return out, nil
}

// NumericColumns returns a Coerce function that applies Numeric to the
// named groups and Strings to the others.
func NumericColumns(names ...string) func(string, []string) (any, error) {
	return func(name string, values []string) (any, error) {
		if slices.Contains(names, name) {
			return Numeric(name, values)
		}
		return Strings(name, values)
	}
}
