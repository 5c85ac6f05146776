// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/pgrun/runview/source"
)

// A kind decodes the body of a source block.
type kind struct {
	doc    string
	decode func(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics)
}

var kinds = map[string]kind{
	"delimited": {"psql unaligned table dump", decodeDelimited},
	"pivot":     {"psql table dump pivoted from long to wide", decodePivot},
	"waits":     {"sampled wait events, summed per event", decodeWaits},
	"regexp":    {"line log matched by a regular expression", decodeRegexp},
	"progress":  {"pgbench --progress output", decodeProgress},
	"results":   {"main JSON report: meminfo joined with pidstat", decodeResults},
	"iostat":    {"sysstat iostat JSON output", decodeIOStat},
	"latency":   {"pgbench transaction logs aggregated to latency quantiles", decodeLatency},
}

// Kinds returns the names of the source kinds in sorted order.
func Kinds() []string {
	return slices.Sorted(maps.Keys(kinds))
}

// KindDoc returns a one-line description of the named source kind.
func KindDoc(name string) string {
	return kinds[name].doc
}

// sourceError converts a constructor error to a diagnostic on body.
func sourceError(body hcl.Body, err error) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Invalid source",
		Detail:   err.Error(),
		Subject:  body.MissingItemRange().Ptr(),
	}}
}

type delimitedArgs struct {
	Path          string    `hcl:"path,optional"`
	Prefix        string    `hcl:"prefix,optional"`
	Delimiter     string    `hcl:"delimiter,optional"`
	IndexColumn   string    `hcl:"index_column,optional"`
	IndexPosition int       `hcl:"index_position,optional"`
	DateColumns   []string  `hcl:"date_columns,optional"`
	NAValues      *[]string `hcl:"na_values,optional"`
}

func (a *delimitedArgs) config() source.DelimitedConfig {
	cfg := source.DelimitedConfig{
		Path:          a.Path,
		Prefix:        a.Prefix,
		Delimiter:     a.Delimiter,
		IndexColumn:   a.IndexColumn,
		IndexPosition: a.IndexPosition,
		DateColumns:   a.DateColumns,
	}
	if a.NAValues != nil {
		cfg.NAValues = append([]string{}, *a.NAValues...)
	}
	return cfg
}

func decodeDelimited(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args delimitedArgs
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	s, err := source.NewDelimited(name, args.config())
	if err != nil {
		return nil, sourceError(body, err)
	}
	return s, nil
}

func decodePivot(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args struct {
		Columns []string `hcl:"pivot_columns"`
		Values  []string `hcl:"values,optional"`
		Rest    hcl.Body `hcl:",remain"`
	}
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	var d delimitedArgs
	if diags := gohcl.DecodeBody(args.Rest, ctx, &d); diags.HasErrors() {
		return nil, diags
	}
	s, err := source.NewPivot(name, source.PivotConfig{
		DelimitedConfig: d.config(),
		Columns:         args.Columns,
		Values:          args.Values,
	})
	if err != nil {
		return nil, sourceError(body, err)
	}
	return s, nil
}

func decodeWaits(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args struct {
		ExcludeStates     *[]string `hcl:"exclude_states,optional"`
		ExcludeEventTypes *[]string `hcl:"exclude_event_types,optional"`
		Dimensions        []string  `hcl:"dimensions,optional"`
		Value             string    `hcl:"value,optional"`
		Rest              hcl.Body  `hcl:",remain"`
	}
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	var d delimitedArgs
	if diags := gohcl.DecodeBody(args.Rest, ctx, &d); diags.HasErrors() {
		return nil, diags
	}
	cfg := source.WaitsConfig{
		DelimitedConfig: d.config(),
		Dimensions:      args.Dimensions,
		Value:           args.Value,
	}
	if args.ExcludeStates != nil {
		cfg.ExcludeStates = append([]string{}, *args.ExcludeStates...)
	}
	if args.ExcludeEventTypes != nil {
		cfg.ExcludeEventTypes = append([]string{}, *args.ExcludeEventTypes...)
	}
	s, err := source.NewWaits(name, cfg)
	if err != nil {
		return nil, sourceError(body, err)
	}
	return s, nil
}

func decodeRegexp(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args struct {
		Path        string   `hcl:"path,optional"`
		Prefix      string   `hcl:"prefix,optional"`
		Pattern     string   `hcl:"pattern"`
		Index       string   `hcl:"index"`
		IndexFormat string   `hcl:"index_format,optional"`
		Numeric     []string `hcl:"numeric,optional"`
		NumericAll  bool     `hcl:"numeric_all,optional"`
	}
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return nil, sourceError(body, fmt.Errorf("source %s: %w", name, err))
	}
	cfg := source.RegexpConfig{
		Path:    args.Path,
		Prefix:  args.Prefix,
		Pattern: re,
		Index:   args.Index,
	}
	switch args.IndexFormat {
	case "":
	case "epoch":
		cfg.CoerceIndex = source.EpochSeconds
	default:
		cfg.CoerceIndex = source.TimeLayout(args.IndexFormat)
	}
	switch {
	case args.NumericAll:
		cfg.Coerce = source.Numeric
	case len(args.Numeric) > 0:
		cfg.Coerce = source.NumericColumns(args.Numeric...)
	}
	s, err := source.NewRegexp(name, cfg)
	if err != nil {
		return nil, sourceError(body, err)
	}
	return s, nil
}

// pathArgs are the arguments of kinds configured only by location.
type pathArgs struct {
	Path   string `hcl:"path,optional"`
	Prefix string `hcl:"prefix,optional"`
}

func decodeProgress(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args pathArgs
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	return source.NewProgress(name, source.ProgressConfig{Path: args.Path, Prefix: args.Prefix}), nil
}

func decodeResults(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args pathArgs
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	return source.NewResults(name, source.ResultsConfig{Path: args.Path, Prefix: args.Prefix}), nil
}

func decodeIOStat(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args pathArgs
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	return source.NewIOStat(name, source.IOStatConfig{Path: args.Path, Prefix: args.Prefix}), nil
}

func decodeLatency(c *Catalog, name string, body hcl.Body, ctx *hcl.EvalContext) (source.Source, hcl.Diagnostics) {
	var args struct {
		Path            string  `hcl:"path,optional"`
		Prefix          string  `hcl:"prefix,optional"`
		Glob            string  `hcl:"glob,optional"`
		Interval        string  `hcl:"interval,optional"`
		Quantiles       *int    `hcl:"quantiles,optional"`
		PercentileLimit float64 `hcl:"percentile_limit,optional"`
		CacheTag        string  `hcl:"cache_tag,optional"`
		NoCache         bool    `hcl:"no_cache,optional"`
	}
	if diags := gohcl.DecodeBody(body, ctx, &args); diags.HasErrors() {
		return nil, diags
	}
	cfg := source.LatencyConfig{
		Path:            args.Path,
		Prefix:          args.Prefix,
		Glob:            args.Glob,
		Quantiles:       args.Quantiles,
		PercentileLimit: args.PercentileLimit,
		CacheTag:        args.CacheTag,
		NoCache:         args.NoCache,
		Logger:          c.log,
	}
	if args.Interval != "" {
		d, err := time.ParseDuration(args.Interval)
		if err != nil {
			return nil, sourceError(body, fmt.Errorf("source %s: interval: %w", name, err))
		}
		cfg.Interval = d
	}
	s, err := source.NewLatency(name, cfg)
	if err != nil {
		return nil, sourceError(body, err)
	}
	return s, nil
}
