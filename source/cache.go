// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/pgrun/runview/frame"
	"go.uber.org/zap"
)

// CacheName returns the base name of the cache file. It encodes every
// parameter that affects the aggregate.
func (s *Latency) CacheName() string {
	return strings.Join([]string{
		s.cfg.CacheTag,
		sanitize(s.cfg.Glob),
		strconv.FormatFloat(s.cfg.PercentileLimit, 'g', -1, 64),
		strconv.Itoa(s.n),
		s.cfg.Interval.String(),
	}, "-") + ".cache"
}

// sanitize replaces characters that are unsafe in file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '_', r == '.', r == '-':
			return r
		}
		return '_'
	}, s)
}

// readCache returns the cached aggregate in dir, or nil if there is
// none or it is older than any of inputs.
func (s *Latency) readCache(dir string, inputs []string) *frame.Frame {
	path := filepath.Join(dir, s.CacheName())
	log := s.log.With(zap.String("cache", path))
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("cache missing")
		return nil
	} else if err != nil {
		log.Warn("cache unreadable", zap.Error(err))
		return nil
	}
	for _, in := range inputs {
		inInfo, err := os.Stat(in)
		if err != nil {
			log.Warn("cannot stat input", zap.String("input", in), zap.Error(err))
			return nil
		}
		if !inInfo.ModTime().Before(info.ModTime()) {
			log.Info("cache stale", zap.String("input", in), zap.Time("input_mtime", inInfo.ModTime()), zap.Time("cache_mtime", info.ModTime()))
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err == nil {
		data, err = snappy.Decode(nil, data)
	}
	var f *frame.Frame
	if err == nil {
		f, err = frame.Decode(bytes.NewReader(data))
	}
	if err != nil {
		log.Warn("cache corrupt", zap.Error(err))
		return nil
	}
	log.Info("cache hit", zap.Int("rows", f.Len()))
	return f
}

// writeCache stores f as the cached aggregate in dir. Errors are
// logged, not returned.
func (s *Latency) writeCache(dir string, f *frame.Frame) {
	path := filepath.Join(dir, s.CacheName())
	log := s.log.With(zap.String("cache", path))
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		log.Warn("cannot encode cache", zap.Error(err))
		return
	}
	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		log.Warn("cannot write cache", zap.Error(err))
		return
	}
	_, err = tmp.Write(snappy.Encode(nil, buf.Bytes()))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		log.Warn("cannot write cache", zap.Error(err))
		return
	}
	log.Info("cache written", zap.Int("rows", f.Len()))
}
