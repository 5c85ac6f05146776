// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgrun/runview/frame"
)

// meminfoTimeLayout is the timestamp layout of the meminfo samples.
const meminfoTimeLayout = "2006-01-02T15:04:05,999999-0700"

// ResultsConfig configures a Results source.
type ResultsConfig struct {
	// Path is the results directory, or a results document,
	// relative to the run root. The default is "results".
	Path string

	// Prefix, if set, is prepended to every column label.
	Prefix string
}

// Results is the run's main JSON report. The report lives in the
// results directory under the run's UUID; its data.meminfo samples
// and the samples of the first data.pidstat process are joined on
// their timestamps.
type Results struct {
	Base
}

// NewResults returns a Results source named name.
func NewResults(name string, cfg ResultsConfig) *Results {
	return &Results{Base: NewBase(name, cfg.Path, cfg.Prefix)}
}

// Path returns the report document. If the configured path is a
// directory, it is the first entry named <uuid>.json, or failing that
// the first entry.
func (s *Results) Path(root string) (string, error) {
	dir := filepath.Join(root, s.relPath("results"))
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return dir, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(ents) == 0 {
		return "", fmt.Errorf("%s: empty results directory: %w", dir, fs.ErrNotExist)
	}
	for _, ent := range ents {
		name := ent.Name()
		if id, ok := strings.CutSuffix(name, ".json"); ok && !ent.IsDir() {
			if _, err := uuid.Parse(id); err == nil {
				return filepath.Join(dir, name), nil
			}
		}
	}
	return filepath.Join(dir, ents[0].Name()), nil
}

func (s *Results) Load(path string) (*frame.Frame, error) {
	doc, err := readJSON(path)
	if err != nil {
		return nil, err
	}

	mem, err := records(path, doc, "data.meminfo")
	if err != nil {
		return nil, err
	}
	memF, err := recordFrame(path, "data.meminfo", mem, func(v any) (time.Time, error) {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, fmt.Errorf("expected string, got %s", jsonType(v))
		}
		return time.Parse(meminfoTimeLayout, s)
	})
	if err != nil {
		return nil, err
	}

	pid, err := records(path, doc, "data.pidstat.0.data")
	if err != nil {
		return nil, err
	}
	pidF, err := recordFrame(path, "data.pidstat.0.data", pid, jsonEpoch)
	if err != nil {
		return nil, err
	}

	f, err := frame.Join(memF, pidF)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s.finish(f), nil
}

// recordFrame builds a Frame from JSON records, taking the index from
// each record's "ts" key.
func recordFrame(file, key string, recs []map[string]any, parseTS func(any) (time.Time, error)) (*frame.Frame, error) {
	index := make([]time.Time, len(recs))
	rest := make([]map[string]any, len(recs))
	for i, r := range recs {
		ts, ok := r["ts"]
		if !ok {
			return nil, &SchemaError{File: file, Key: fmt.Sprintf("%s.%d.ts", key, i)}
		}
		t, err := parseTS(ts)
		if err != nil {
			return nil, &SchemaError{File: file, Key: fmt.Sprintf("%s.%d.ts", key, i), Msg: err.Error()}
		}
		index[i] = t
		rest[i] = make(map[string]any, len(r)-1)
		for k, v := range r {
			if k != "ts" {
				rest[i][k] = v
			}
		}
	}
	return frame.FromRecords(index, rest)
}

// jsonEpoch converts a JSON number of seconds since the Unix epoch.
func jsonEpoch(v any) (time.Time, error) {
	n, ok := v.(json.Number)
	if !ok {
		return time.Time{}, fmt.Errorf("expected number, got %s", jsonType(v))
	}
	secs, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return time.Time{}, err
	}
	return epochTime(secs), nil
}
