// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader composes named sources into a loader that merges every
// artifact of a benchmark run into one time-indexed frame.
//
// A Registry is built explicitly: sources are registered by name and a
// registry may extend another, with later registrations replacing
// earlier ones of the same name. Catalog builds registries from HCL
// loader definitions.
package loader

import (
	"fmt"
	"time"

	"github.com/pgrun/runview/frame"
	"github.com/pgrun/runview/source"
	"go.uber.org/zap"
)

// A Registry is an ordered set of named sources.
//
// The zero value is an empty registry ready to use.
type Registry struct {
	// Logger, if non-nil, receives a debug entry for every source
	// loaded.
	Logger *zap.Logger

	names   []string
	sources map[string]source.Source
}

// New returns an empty registry.
func New() *Registry {
	return new(Registry)
}

// Register adds src under name. If name is already registered, src
// replaces the existing source and keeps its position.
func (r *Registry) Register(name string, src source.Source) *Registry {
	if r.sources == nil {
		r.sources = make(map[string]source.Source)
	}
	if _, ok := r.sources[name]; !ok {
		r.names = append(r.names, name)
	}
	r.sources[name] = src
	return r
}

// Extend registers every source of base, in base's order.
func (r *Registry) Extend(base *Registry) *Registry {
	for _, name := range base.names {
		r.Register(name, base.sources[name])
	}
	return r
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.names)
}

// Names returns the registered names in load order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Source returns the source registered under name, or nil.
func (r *Registry) Source(name string) source.Source {
	return r.sources[name]
}

// Load loads every source under the run directory root and returns
// the outer join of their frames on the time index.
//
// Each source's frame has its column kinds normalized with
// frame.Frame.Convert before joining. The first error aborts the load.
func (r *Registry) Load(root string) (*frame.Frame, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	acc := frame.Empty
	for _, name := range r.names {
		src := r.sources[name]
		start := time.Now()
		path, err := src.Path(root)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		f, err := src.Load(path)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		f = f.Convert()
		if acc, err = frame.Join(acc, f); err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		log.Debug("loaded source",
			zap.String("source", name),
			zap.String("path", path),
			zap.Int("rows", f.Len()),
			zap.Int("columns", len(f.Labels())),
			zap.Duration("elapsed", time.Since(start)))
	}
	return acc, nil
}
