// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pgrun/runview/source"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

// A Catalog holds loader definitions parsed from HCL files:
//
//	loader "base" {
//	  source "buffercache_progress" "delimited" {}
//	}
//	loader "run" {
//	  extends = "base"
//	  source "pg_stat_io_progress" "pivot" {
//	    pivot_columns = ["backend_type", "context", "object"]
//	    values        = ["writes"]
//	  }
//	}
//
// Expressions may refer to the catalog's variables as var.NAME.
type Catalog struct {
	vars   map[string]string
	log    *zap.Logger
	parser *hclparse.Parser
	defs   map[string]*definition
}

// definition is a decoded loader block.
type definition struct {
	name    string
	extends string
	rng     hcl.Range
	names   []string
	sources map[string]source.Source
}

type catalogFile struct {
	Loaders []*loaderBlock `hcl:"loader,block"`
}

type loaderBlock struct {
	Name     string         `hcl:"name,label"`
	Extends  string         `hcl:"extends,optional"`
	Sources  []*sourceBlock `hcl:"source,block"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type sourceBlock struct {
	Name     string    `hcl:"name,label"`
	Kind     string    `hcl:"kind,label"`
	Body     hcl.Body  `hcl:",remain"`
	DefRange hcl.Range `hcl:",def_range"`
}

// NewCatalog returns an empty catalog. vars are exposed to expressions
// as var.NAME. log, which may be nil, is given to sources that log.
func NewCatalog(vars map[string]string, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		vars:   vars,
		log:    log,
		parser: hclparse.NewParser(),
		defs:   make(map[string]*definition),
	}
}

//go:embed default.hcl
var defaultHCL []byte

// DefaultCatalog returns a catalog holding the built-in loader
// definitions.
func DefaultCatalog(vars map[string]string, log *zap.Logger) (*Catalog, error) {
	c := NewCatalog(vars, log)
	if err := c.Parse(defaultHCL, "default.hcl"); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseFile adds the loader definitions in the HCL file at path.
func (c *Catalog) ParseFile(path string) error {
	file, diags := c.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return diags
	}
	return c.decode(file)
}

// Parse adds the loader definitions in src. filename is used in
// diagnostics.
func (c *Catalog) Parse(src []byte, filename string) error {
	file, diags := c.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return diags
	}
	return c.decode(file)
}

func (c *Catalog) evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(c.vars))
	for k, v := range c.vars {
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
	}
}

func (c *Catalog) decode(file *hcl.File) error {
	ctx := c.evalContext()
	var cf catalogFile
	if diags := gohcl.DecodeBody(file.Body, ctx, &cf); diags.HasErrors() {
		return diags
	}

	var diags hcl.Diagnostics
	for _, lb := range cf.Loaders {
		if prev, ok := c.defs[lb.Name]; ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate loader",
				Detail:   fmt.Sprintf("Loader %q was already defined at %s.", lb.Name, prev.rng),
				Subject:  lb.DefRange.Ptr(),
			})
			continue
		}
		def := &definition{
			name:    lb.Name,
			extends: lb.Extends,
			rng:     lb.DefRange,
			sources: make(map[string]source.Source),
		}
		for _, sb := range lb.Sources {
			if _, ok := def.sources[sb.Name]; ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate source",
					Detail:   fmt.Sprintf("Loader %q already declares source %q.", lb.Name, sb.Name),
					Subject:  sb.DefRange.Ptr(),
				})
				continue
			}
			src, sdiags := c.newSource(sb, ctx)
			diags = append(diags, sdiags...)
			if src == nil {
				continue
			}
			def.names = append(def.names, sb.Name)
			def.sources[sb.Name] = src
		}
		c.defs[lb.Name] = def
	}
	if diags.HasErrors() {
		return diags
	}
	return nil
}

// newSource builds the source declared by sb.
func (c *Catalog) newSource(sb *sourceBlock, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	k, ok := kinds[sb.Kind]
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown source kind",
			Detail:   fmt.Sprintf("Source %q has kind %q; the known kinds are %v.", sb.Name, sb.Kind, Kinds()),
			Subject:  sb.DefRange.Ptr(),
		}}
	}
	src, diags := k.decode(c, sb.Name, sb.Body, ctx)
	if diags.HasErrors() {
		return nil, diags
	}
	return src, diags
}

// Loaders returns the names of the defined loaders in sorted order.
func (c *Catalog) Loaders() []string {
	return slices.Sorted(maps.Keys(c.defs))
}

// Registry returns the registry of the loader named name, including
// the sources it inherits.
func (c *Catalog) Registry(name string) (*Registry, error) {
	return c.registry(name, nil)
}

func (c *Catalog) registry(name string, chain []string) (*Registry, error) {
	if slices.Contains(chain, name) {
		return nil, fmt.Errorf("loader %s: extends cycle %v", name, append(chain, name))
	}
	def, ok := c.defs[name]
	if !ok {
		if len(chain) > 0 {
			return nil, fmt.Errorf("loader %s: extends unknown loader %s", chain[len(chain)-1], name)
		}
		return nil, fmt.Errorf("unknown loader %s", name)
	}
	r := New()
	r.Logger = c.log
	if def.extends != "" {
		base, err := c.registry(def.extends, append(chain, name))
		if err != nil {
			return nil, err
		}
		r.Extend(base)
	}
	for _, n := range def.names {
		r.Register(n, def.sources[n])
	}
	return r, nil
}
