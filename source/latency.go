// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"database/sql"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aclements/go-gg/ggstat"
	"github.com/aclements/go-gg/table"
	"github.com/aclements/go-moremath/stats"
	"github.com/pgrun/runview/frame"
	"github.com/pgrun/runview/runfmt"
	"go.uber.org/zap"
)

// LatencyConfig configures a Latency source.
type LatencyConfig struct {
	// Path is the directory holding the transaction logs, relative
	// to the run root. The default is "execution_reports".
	Path string

	// Prefix, if set, is prepended to every column label.
	Prefix string

	// Glob selects the transaction logs in the directory. The
	// default is "pgbench_log*".
	Glob string

	// Interval is the width of the time buckets. The default is one
	// second.
	Interval time.Duration

	// Quantiles is the number of quantiles computed on each side of
	// the median. If nil, the default is 10. Zero computes only the
	// PercentileLimit quantile.
	Quantiles *int

	// PercentileLimit is the lowest quantile computed; the highest is
	// 1-PercentileLimit. The default is 0.001.
	PercentileLimit float64

	// CacheTag is the first component of the cache file name. The
	// default is "latency".
	CacheTag string

	// NoCache disables reading and writing the cache file.
	NoCache bool

	// Logger receives cache decisions. The default discards them.
	Logger *zap.Logger
}

// Latency aggregates pgbench per-transaction logs into per-interval
// latency quantiles and the mean latency, in microseconds.
//
// Aggregating every transaction of a long run is slow, so the result
// is cached in a file next to the logs and reused until a log changes.
type Latency struct {
	Base
	cfg       LatencyConfig
	n         int // resolved cfg.Quantiles
	quantiles []float64
	labels    []frame.Label
	log       *zap.Logger
}

// NewLatency returns a Latency source named name.
func NewLatency(name string, cfg LatencyConfig) (*Latency, error) {
	if cfg.Glob == "" {
		cfg.Glob = "pgbench_log*"
	}
	if _, err := filepath.Match(cfg.Glob, ""); err != nil {
		return nil, fmt.Errorf("source %s: bad glob %q: %w", name, cfg.Glob, err)
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("source %s: negative interval %v", name, cfg.Interval)
	}
	n := 10
	if cfg.Quantiles != nil {
		n = *cfg.Quantiles
	}
	if n < 0 {
		return nil, fmt.Errorf("source %s: negative quantile count %d", name, n)
	}
	if cfg.PercentileLimit == 0 {
		cfg.PercentileLimit = 0.001
	}
	if !(cfg.PercentileLimit > 0 && cfg.PercentileLimit < 0.5) {
		return nil, fmt.Errorf("source %s: percentile limit %v not in (0, 0.5)", name, cfg.PercentileLimit)
	}
	if cfg.CacheTag == "" {
		cfg.CacheTag = "latency"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Latency{
		Base:      NewBase(name, cfg.Path, cfg.Prefix),
		cfg:       cfg,
		n:         n,
		quantiles: Quantiles(cfg.PercentileLimit, n),
		log:       log.Named(name),
	}
	for _, q := range s.quantiles {
		s.labels = append(s.labels, frame.L(quantileLabel(q)))
	}
	s.labels = append(s.labels, frame.L("mean"))
	return s, nil
}

// Quantiles returns 2n+1 quantiles evenly spaced from limit to
// 1-limit.
func Quantiles(limit float64, n int) []float64 {
	if n == 0 {
		return []float64{limit}
	}
	qs := make([]float64, 2*n+1)
	step := (1 - 2*limit) / float64(2*n)
	for i := range qs {
		qs[i] = limit + float64(i)*step
	}
	qs[2*n] = 1 - limit
	return qs
}

// quantileLabel formats q without floating-point noise.
func quantileLabel(q float64) string {
	return strconv.FormatFloat(math.Round(q*1e9)/1e9, 'f', -1, 64)
}

// Path returns the directory of the transaction logs.
func (s *Latency) Path(root string) (string, error) {
	return filepath.Join(root, s.relPath("execution_reports")), nil
}

func (s *Latency) Load(dir string) (*frame.Frame, error) {
	inputs, err := s.inputs(dir)
	if err != nil {
		return nil, err
	}
	var f *frame.Frame
	if !s.cfg.NoCache {
		f = s.readCache(dir, inputs)
	}
	if f == nil {
		if f, err = s.aggregate(inputs); err != nil {
			return nil, err
		}
		if !s.cfg.NoCache {
			s.writeCache(dir, f)
		}
	}
	return s.finish(f), nil
}

// inputs returns the transaction logs in dir. Cache files, including
// those of other Latency sources and partly written ones, are never
// inputs.
func (s *Latency) inputs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, s.cfg.Glob))
	if err != nil {
		return nil, err
	}
	var inputs []string
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasSuffix(base, ".cache") || strings.HasPrefix(base, ".cache-") {
			continue
		}
		inputs = append(inputs, m)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: no files match %s: %w", dir, s.cfg.Glob, fs.ErrNotExist)
	}
	return inputs, nil
}

// Column names in the aggregation table.
const (
	bucketCol  = "bucket"
	latencyCol = "latency"
)

// aggregate reads the transaction logs and computes the quantiles and
// mean latency of each interval. Skipped and failed transactions are
// ignored. Intervals without transactions are missing.
func (s *Latency) aggregate(inputs []string) (*frame.Frame, error) {
	var times []int64
	var lats []float64
	files := &runfmt.Files{Paths: inputs}
	defer files.Close()
	for files.Scan() {
		switch rec := files.Record().(type) {
		case *runfmt.SyntaxError:
			return nil, rec
		case *runfmt.TxRecord:
			if rec.Status != runfmt.TxOK {
				continue
			}
			times = append(times, rec.Time.UnixNano())
			lats = append(lats, rec.Latency)
		}
	}
	if err := files.Err(); err != nil {
		return nil, err
	}
	if len(lats) == 0 {
		b := frame.NewBuilder(nil)
		for _, l := range s.labels {
			b.Add(l, frame.MakeColumn(frame.Float, 0))
		}
		return b.Done(), nil
	}

	step := int64(s.cfg.Interval)
	origin := startDay(slices.Min(times))
	buckets := make([]int64, len(times))
	for i, t := range times {
		buckets[i] = origin + (t-origin)/step*step
	}

	var tb table.Builder
	tb.Add(bucketCol, buckets).Add(latencyCol, lats)
	names := make([]string, len(s.quantiles))
	for i := range s.quantiles {
		names[i] = s.labels[i][0] + " " + latencyCol
	}
	aggs := []ggstat.Aggregator{
		aggQuantiles(names, s.quantiles, latencyCol),
		ggstat.AggMean(latencyCol),
	}
	agg := table.Flatten(table.SortBy(ggstat.Agg(bucketCol)(aggs...).F(tb.Done()), bucketCol))

	// Lay the aggregates out on a contiguous range of buckets.
	got := agg.MustColumn(bucketCol).([]int64)
	first, last := got[0], got[len(got)-1]
	n := int((last-first)/step) + 1
	index := make([]time.Time, n)
	for i := range index {
		index[i] = time.Unix(0, first+int64(i)*step).UTC()
	}
	b := frame.NewBuilder(index)
	for i, l := range s.labels {
		name := latencyCol
		if i < len(s.quantiles) {
			name = l[0] + " " + name
		} else {
			name = "mean " + name
		}
		vals := agg.MustColumn(name).([]float64)
		col := make([]sql.NullFloat64, n)
		for j, bucket := range got {
			col[(bucket-first)/step] = sql.NullFloat64{Float64: vals[j], Valid: true}
		}
		b.Add(l, col)
	}
	return b.Done(), nil
}

// startDay returns midnight UTC of the day holding t, in Unix
// nanoseconds. Buckets are counted from there.
func startDay(t int64) int64 {
	y, m, d := time.Unix(0, t).UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixNano()
}

// aggQuantiles returns an aggregator that adds, for each q in qs, a
// column names[i] holding the q quantile of col in each group. Each
// group is sorted once for all quantiles.
func aggQuantiles(names []string, qs []float64, col string) ggstat.Aggregator {
	return func(input table.Grouping, b *table.Builder) {
		out := make([][]float64, len(qs))
		for _, gid := range input.Tables() {
			xs := input.Table(gid).MustColumn(col).([]float64)
			sample := stats.Sample{Xs: slices.Clone(xs)}
			sample.Sort()
			for i, q := range qs {
				out[i] = append(out[i], linearQuantile(sample, q))
			}
		}
		for i, name := range names {
			b.Add(name, out[i])
		}
	}
}

// linearQuantile returns the q quantile of the sorted sample s by
// linear interpolation between the closest ranks, at rank q*(n-1).
func linearQuantile(s stats.Sample, q float64) float64 {
	n := len(s.Xs)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 || n == 1 {
		min, _ := s.Bounds()
		return min
	}
	if q >= 1 {
		_, max := s.Bounds()
		return max
	}
	h := q * float64(n-1)
	lo := int(h)
	if lo >= n-1 {
		return s.Xs[n-1]
	}
	return s.Xs[lo] + (h-float64(lo))*(s.Xs[lo+1]-s.Xs[lo])
}
