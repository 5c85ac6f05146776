// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source defines the artifacts of a benchmark run and how to
// parse each of them into a frame.Frame.
//
// A Source names one artifact, resolves where it lives under a run's
// root directory, and parses it. The concrete kinds cover psql table
// dumps (Delimited, Pivot, Waits), regular-expression matched logs
// (Regexp, Progress), JSON reports (Results, IOStat) and pgbench
// per-transaction logs (Latency).
package source

import (
	"fmt"
	"path/filepath"

	"github.com/pgrun/runview/frame"
)

// A Source is one artifact of a benchmark run.
type Source interface {
	// Name returns the identity of the source.
	Name() string

	// Path resolves the location of the artifact under the run
	// directory root.
	Path(root string) (string, error)

	// Load parses the artifact at path.
	Load(path string) (*frame.Frame, error)
}

// Base implements the parts of Source shared by every kind: its name,
// the default path resolution and the column prefix.
type Base struct {
	name   string
	path   string
	prefix string
}

// NewBase returns a Base named name. If path is "", the artifact is
// expected at name+".raw" in the run directory. If prefix is not "",
// it is prepended as the first level of every column label.
func NewBase(name, path, prefix string) Base {
	return Base{name: name, path: path, prefix: prefix}
}

// Name returns the name of the source.
func (b *Base) Name() string {
	return b.name
}

// Path returns root joined with the configured path, or with the
// source name plus ".raw".
func (b *Base) Path(root string) (string, error) {
	return filepath.Join(root, b.relPath(b.name+".raw")), nil
}

func (b *Base) relPath(def string) string {
	if b.path != "" {
		return b.path
	}
	return def
}

// Prefix returns the column prefix of the source.
func (b *Base) Prefix() string {
	return b.prefix
}

func (b *Base) finish(f *frame.Frame) *frame.Frame {
	return f.WithPrefix(b.prefix)
}

// A SchemaError reports that a JSON artifact lacks an expected key or
// has a value of the wrong shape at that key.
type SchemaError struct {
	File string
	Key  string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: missing key %q", e.File, e.Key)
	}
	return fmt.Sprintf("%s: key %q: %s", e.File, e.Key, e.Msg)
}
