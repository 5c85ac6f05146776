// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runfmt

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
)

// A PatternReader reads a line-oriented log in which every line must
// match a regular expression at its start. The named capture groups
// of the expression are the fields of each line.
//
// Its API is modeled on bufio.Scanner.
type PatternReader struct {
	re       *regexp.Regexp
	names    []string // named groups
	groups   []int    // submatch index of names[i]
	s        *bufio.Scanner
	fileName string
	line     int
	fields   []string
	err      error
}

// NewPatternReader returns a PatternReader reading from r. re must
// have at least one named capture group. fileName is used in error
// messages.
func NewPatternReader(r io.Reader, fileName string, re *regexp.Regexp) *PatternReader {
	pr := &PatternReader{re: re, s: bufio.NewScanner(r), fileName: fileName}
	for i, name := range re.SubexpNames() {
		if name != "" {
			pr.names = append(pr.names, name)
			pr.groups = append(pr.groups, i)
		}
	}
	pr.fields = make([]string, len(pr.names))
	return pr
}

// Names returns the names of the fields, in the order they appear in
// the expression.
func (r *PatternReader) Names() []string {
	return r.names
}

// Scan advances to the next line and reports whether it matched. If
// a line does not match, or an I/O error occurs, Scan returns false
// and Err reports the problem; a mismatch is a *SyntaxError.
func (r *PatternReader) Scan() bool {
	if r.err != nil || !r.s.Scan() {
		if r.err == nil {
			if err := r.s.Err(); err != nil {
				r.err = fmt.Errorf("%s:%d: %w", r.fileName, r.line, err)
			}
		}
		return false
	}
	r.line++
	text := r.s.Text()
	m := r.re.FindStringSubmatchIndex(text)
	if m == nil || m[0] != 0 {
		r.err = &SyntaxError{r.fileName, r.line, fmt.Sprintf("line does not match %q", r.re)}
		return false
	}
	for i, g := range r.groups {
		if m[2*g] < 0 {
			// Optional group that did not participate.
			r.fields[i] = ""
			continue
		}
		r.fields[i] = text[m[2*g]:m[2*g+1]]
	}
	return true
}

// Fields returns the named group values of the current line, in the
// order of Names. An optional group that did not match is "". The
// slice is overwritten by the next call to Scan.
func (r *PatternReader) Fields() []string {
	return r.fields
}

// Err returns the error that stopped Scan, if any.
func (r *PatternReader) Err() error {
	return r.err
}
