// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pgrun/runview/frame"
	"github.com/pgrun/runview/runfmt"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// writeFiles creates files under dir from a map of relative paths to
// contents.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o666); err != nil {
			t.Fatal(err)
		}
	}
}

// rows renders f as one line per row: the offset of the index from t0
// followed by every cell.
func rows(f *frame.Frame) []string {
	var out []string
	for i, t := range f.Index() {
		fields := []string{t.Sub(t0).String()}
		for _, l := range f.Labels() {
			fields = append(fields, frame.FormatCell(f.Column(l), i))
		}
		out = append(out, strings.Join(fields, " "))
	}
	return out
}

func kinds(f *frame.Frame) map[string]frame.Kind {
	out := make(map[string]frame.Kind)
	for _, l := range f.Labels() {
		out[l.String()] = f.Kind(l)
	}
	return out
}

// load resolves and loads s under root.
func load(t *testing.T, s Source, root string) *frame.Frame {
	t.Helper()
	path, err := s.Path(root)
	if err != nil {
		t.Fatal(err)
	}
	f, err := s.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestBasePath(t *testing.T) {
	b := NewBase("buffercache_progress", "", "")
	if got, _ := b.Path("/run"); got != filepath.Join("/run", "buffercache_progress.raw") {
		t.Errorf("default path = %s", got)
	}
	b = NewBase("iostat", "stats/iostat.json", "")
	if got, _ := b.Path("/run"); got != filepath.Join("/run", "stats/iostat.json") {
		t.Errorf("override path = %s", got)
	}
}

const walProgress = `ts|checkpoints|buffers|stats_reset|note
2024-03-01 12:00:00+00|1|2.5|2024-03-01 00:00:00+00|x
2024-03-01 12:00:01+00|2||2024-03-01 00:00:00+00|NULL
(2 rows)
`

func TestDelimited(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pg_stat_wal_progress.raw": walProgress})
	s, err := NewDelimited("pg_stat_wal_progress", DelimitedConfig{DateColumns: []string{"stats_reset"}})
	if err != nil {
		t.Fatal(err)
	}
	f := load(t, s, root)
	want := []string{
		"0s 1 2.5 2024-03-01T00:00:00Z x",
		"1s 2 <NA> 2024-03-01T00:00:00Z <NA>",
	}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	wantKinds := map[string]frame.Kind{
		"checkpoints": frame.Int,
		"buffers":     frame.Float,
		"stats_reset": frame.Time,
		"note":        frame.String,
	}
	if diff := cmp.Diff(wantKinds, kinds(f)); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
}

func TestDelimitedOrderAndNames(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"dup.raw": `ts|x|x|x.1
2024-03-01 12:00:02+00|1|2|3
2024-03-01 12:00:00+00|4|5|6
`})
	s, err := NewDelimited("dup", DelimitedConfig{})
	if err != nil {
		t.Fatal(err)
	}
	f := load(t, s, root)
	if diff := cmp.Diff([]string{"x", "x.1", "x.1.1"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0s 4 5 6", "2s 1 2 3"}, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestDelimitedOptions(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"wal.csv": "n;at\n3;2024-03-01T12:00:05Z\n"})
	s, err := NewDelimited("wal", DelimitedConfig{
		Path:        "wal.csv",
		Prefix:      "wal",
		Delimiter:   ";",
		IndexColumn: "at",
	})
	if err != nil {
		t.Fatal(err)
	}
	f := load(t, s, root)
	if diff := cmp.Diff([]string{"wal_n"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"5s 3"}, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestDelimitedErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"short.raw":   "ts|a|b\n2024-03-01 12:00:00+00|1\n",
		"badtime.raw": "ts|a\nnot a time|1\n",
	})
	for _, test := range []struct {
		name string
		line int
	}{
		{"short", 2},
		{"badtime", 2},
	} {
		s, _ := NewDelimited(test.name, DelimitedConfig{})
		path, _ := s.Path(root)
		_, err := s.Load(path)
		var serr *runfmt.SyntaxError
		if !errors.As(err, &serr) || serr.Line != test.line {
			t.Errorf("%s: got %v, want syntax error on line %d", test.name, err, test.line)
		}
	}

	s, _ := NewDelimited("absent", DelimitedConfig{})
	path, _ := s.Path(root)
	if _, err := s.Load(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: got %v, want not-exist error", err)
	}

	if _, err := NewDelimited("x", DelimitedConfig{Delimiter: "||"}); err == nil {
		t.Errorf("multi-character delimiter accepted")
	}
}

func TestPivot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pg_stat_io_progress.raw": `ts|backend_type|context|object|writes
2024-03-01 12:00:00+00|client backend|normal|relation|10
2024-03-01 12:00:00+00|checkpointer|normal|relation|20
2024-03-01 12:00:01+00|client backend|normal|relation|11
(3 rows)
`})
	s, err := NewPivot("pg_stat_io_progress", PivotConfig{
		Columns: []string{"backend_type", "context", "object"},
		Values:  []string{"writes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := load(t, s, root)
	wantNames := []string{"checkpointer_normal_relation", "client backend_normal_relation"}
	if diff := cmp.Diff(wantNames, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := []string{"0s 20 10", "1s <NA> 11"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	if _, err := NewPivot("p", PivotConfig{}); err == nil {
		t.Errorf("pivot without columns accepted")
	}
}

func TestWaits(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"aggwaits.raw": `ts|state|wait_event_type|wait_event|count
2024-03-01 12:00:00+00|active|LWLock|WALWrite|2
2024-03-01 12:00:00+00|active|LWLock|WALWrite|3
2024-03-01 12:00:00+00|idle|Client|ClientRead|5
2024-03-01 12:00:00+00|active|Activity|WalWriterMain|1
2024-03-01 12:00:00+00|active|IO|DataFileRead|4
2024-03-01 12:00:01+00|active|||7
2024-03-01 12:00:01+00|active|IO|DataFileRead|1
2024-03-01 12:00:01+00|idle in transaction|Lock|relation|9
(8 rows)
`})
	s, err := NewWaits("aggwaits", WaitsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	f := load(t, s, root)
	if diff := cmp.Diff([]string{"IO_DataFileRead", "LWLock_WALWrite"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := []string{"0s 4 5", "1s 1 0"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestRegexp(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"events.log": "2024-03-01 12:00:00 start 1\n2024-03-01 12:00:02 stop x\n"})
	s, err := NewRegexp("events", RegexpConfig{
		Path:    "events.log",
		Pattern: regexp.MustCompile(`(?P<at>\S+ \S+) (?P<what>\w+) (?P<n>\S+)`),
		Index:   "at",
		Coerce:  NumericColumns("n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	f := load(t, s, root)
	if diff := cmp.Diff([]string{"0s start 1", "2s stop <NA>"}, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	if _, err := NewRegexp("x", RegexpConfig{Pattern: regexp.MustCompile(`(?P<a>.)`), Index: "b"}); err == nil {
		t.Errorf("index group outside the pattern accepted")
	}
}

func TestProgress(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pgbench_run_progress.raw": `progress: 1709294400.0 s, 100.5 tps, lat 0.866 ms stddev 0.268, 0 failed
progress: 1709294401.0 s, 101.0 tps, lat 0.900 ms stddev NaN
`})
	f := load(t, NewProgress("pgbench_run_progress", ProgressConfig{}), root)
	if diff := cmp.Diff([]string{"tps", "lat", "lat_stddev", "failed"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := []string{"0s 100.5 0.866 0.268 0", "1s 101 0.9 <NA> <NA>"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestProgressMismatch(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"p.raw": "progress: 1.0 s, 1.0 tps, lat 1.0 ms stddev 1.0\nstarting vacuum...\n"})
	s := NewProgress("p", ProgressConfig{})
	path, _ := s.Path(root)
	_, err := s.Load(path)
	var serr *runfmt.SyntaxError
	if !errors.As(err, &serr) || serr.Line != 2 {
		t.Errorf("got %v, want syntax error on line 2", err)
	}
}

const resultsDoc = `{"data": {
	"meminfo": [
		{"ts": "2024-03-01T12:00:00,000000+0000", "MemFree": 100, "Dirty": 5},
		{"ts": "2024-03-01T13:00:01,500000+0100", "MemFree": 90, "Dirty": 6}
	],
	"pidstat": [{"command": "checkpointer", "data": [
		{"ts": 1709294400, "cpu": 1.5},
		{"ts": 1709294402, "cpu": 2}
	]}]
}}`

func TestResults(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"results/a-notes.txt": "not a report",
		"results/e921166b-219e-4912-b165-d133e3838e5e.json": resultsDoc,
	})
	s := NewResults("main", ResultsConfig{})
	path, err := s.Path(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(path); got != "e921166b-219e-4912-b165-d133e3838e5e.json" {
		t.Errorf("Path chose %s", got)
	}
	f, err := s.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Dirty", "MemFree", "cpu"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := []string{"0s 5 100 1.5", "1.5s 6 90 <NA>", "2s <NA> <NA> 2"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestResultsSchema(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"results/run.json": `{"data": {"meminfo": []}}`})
	s := NewResults("main", ResultsConfig{Path: "results/run.json"})
	path, err := s.Path(root)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Load(path)
	var serr *SchemaError
	if !errors.As(err, &serr) || serr.Key != "data.pidstat" {
		t.Errorf("got %v, want schema error for data.pidstat", err)
	}

	empty := t.TempDir()
	if err := os.Mkdir(filepath.Join(empty, "results"), 0o777); err != nil {
		t.Fatal(err)
	}
	if _, err := NewResults("main", ResultsConfig{}).Path(empty); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("empty results directory: got %v, want not-exist error", err)
	}
}

func TestIOStat(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"iostat.raw": `{"sysstat": {"hosts": [{"nodename": "db", "statistics": [
	{"timestamp": "03/01/2024 12:00:00 PM", "avg-cpu": {"user": 1.5, "idle": 98.5},
	 "disk": [{"disk_device": "sda", "r/s": 10, "w/s": 20.5}, {"disk_device": "sdb", "r/s": 0, "w/s": 0}]},
	{"timestamp": "03/01/2024 12:00:01 PM", "avg-cpu": {"user": 2.0, "idle": 98},
	 "disk": [{"disk_device": "sda", "r/s": 11, "w/s": 21}]}
]}]}}`})
	f := load(t, NewIOStat("iostat", IOStatConfig{}), root)
	if diff := cmp.Diff([]string{"disk_device", "idle", "r/s", "user", "w/s"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := []string{"0s sda 98.5 10 1.5 20.5", "1s sda 98 11 2 21"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}
