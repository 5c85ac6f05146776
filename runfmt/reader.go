// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runfmt reads the raw artifacts of a benchmark run.
//
// It provides streaming readers for psql unaligned table output,
// line-oriented logs matched against a regular expression, and
// pgbench per-transaction logs. The readers only split and validate
// their input; turning the result into a typed table is the job of
// package source.
package runfmt

import (
	"bytes"
	"fmt"
	"strconv"
)

// A SyntaxError represents a syntax error on a particular line of a
// run artifact.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Pos() (fileName string, line int) {
	return e.FileName, e.Line
}

func (s *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", s.FileName, s.Line, s.Msg)
}

// A Record is a single record read from a run artifact. It may be a
// *TxRecord or a *SyntaxError.
type Record interface {
	// Pos returns the position of this record as a file name and a
	// 1-based line number within that file.
	Pos() (fileName string, line int)
}

var _ Record = (*TxRecord)(nil)
var _ Record = (*SyntaxError)(nil)

var noRecord = &SyntaxError{"", 0, "Scan has not been called"}

// atoi parses a non-negative decimal integer. Transaction logs are
// almost entirely short runs of ASCII digits, so those are converted
// directly; anything else goes through strconv for its error.
func atoi(x []byte) (int64, error) {
	if n := len(x); n > 0 && n < 19 {
		var v int64
		for _, c := range x {
			if c < '0' || c > '9' {
				return strconv.ParseInt(string(x), 10, 64)
			}
			v = v*10 + int64(c-'0')
		}
		return v, nil
	}
	return strconv.ParseInt(string(x), 10, 64)
}

// atof parses a decimal number, usually an integer.
func atof(x []byte) (float64, error) {
	if v, err := atoi(x); err == nil {
		return float64(v), nil
	}
	return strconv.ParseFloat(string(x), 64)
}

// splitField returns the leading run of non-blank bytes in x, and the
// rest of x after the blanks that follow it. Blanks are ASCII spaces
// and tabs; the input is expected to be trimmed of line endings.
func splitField(x []byte) (field, rest []byte) {
	i := bytes.IndexAny(x, " \t")
	if i < 0 {
		return x, nil
	}
	field, rest = x[:i], x[i:]
	return field, bytes.TrimLeft(rest, " \t")
}
