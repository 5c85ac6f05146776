// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runfmt

import (
	"os"
)

// Files reads transaction records from a sequence of log files as one
// stream, in the order of Paths. pgbench writes one log per worker
// thread (pgbench_log.PID, pgbench_log.PID.1, ...).
//
// Like TxLogReader, its API is modeled on bufio.Scanner.
type Files struct {
	// Paths is the list of file names to read in.
	Paths []string

	next   int      // index in Paths of the next file to open
	file   *os.File // file being read, or nil
	reader TxLogReader
	err    error
}

// Scan advances to the next record, opening the next file when the
// current one is exhausted, and reports whether a record was read.
// Once it returns false, Err reports whether an I/O error stopped it.
func (f *Files) Scan() bool {
	for f.err == nil {
		if f.file == nil && !f.open() {
			return false
		}
		if f.reader.Scan() {
			return true
		}
		f.err = f.reader.Err()
		f.Close()
	}
	return false
}

// open opens the next file in Paths. It reports false if there are
// none left or the file cannot be opened.
func (f *Files) open() bool {
	if f.next >= len(f.Paths) {
		return false
	}
	path := f.Paths[f.next]
	f.next++
	file, err := os.Open(path)
	if err != nil {
		f.err = err
		return false
	}
	f.file = file
	f.reader.Reset(file, path)
	return true
}

// Record returns the record read by the last call to Scan.
func (f *Files) Record() Record {
	return f.reader.Record()
}

// Err returns the error that stopped Scan, or nil if every file was
// read to the end.
func (f *Files) Err() error {
	return f.err
}

// Close closes the file being read, if any. It is needed only when
// the caller stops before Scan returns false.
func (f *Files) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
