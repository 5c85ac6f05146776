// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runfmt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"
)

// TxStatus is the outcome of a logged transaction.
type TxStatus int

const (
	// TxOK is a completed transaction. Its Latency is valid.
	TxOK TxStatus = iota
	// TxSkipped is a transaction skipped because it would have
	// exceeded the latency limit.
	TxSkipped
	// TxFailed is a transaction that ended with an error.
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxOK:
		return "ok"
	case TxSkipped:
		return "skipped"
	case TxFailed:
		return "failed"
	}
	return fmt.Sprintf("TxStatus(%d)", int(s))
}

// A TxRecord is one line of a pgbench per-transaction log:
//
//	client_id transaction_no time script_no time_epoch time_us [schedule_lag] [retries]
type TxRecord struct {
	ClientID int64
	TxNo     int64

	// Latency is the transaction's elapsed time in microseconds. It
	// is only meaningful when Status is TxOK.
	Latency float64
	Status  TxStatus

	ScriptNo int64

	// Time is the completion time of the transaction.
	Time time.Time

	// ScheduleLag is the schedule lag in microseconds, or -1 if the
	// log does not record it.
	ScheduleLag float64

	// Retries is the number of retries, or -1 if the log does not
	// record it.
	Retries int64

	fileName string
	line     int
}

func (r *TxRecord) Pos() (fileName string, line int) {
	return r.fileName, r.line
}

// A TxLogReader reads a pgbench per-transaction log.
//
// Its API is modeled on bufio.Scanner. A TxLogReader retains
// ownership of the TxRecord it returns; a caller should copy anything
// it needs to retain.
type TxLogReader struct {
	s   *bufio.Scanner
	err error // current I/O error

	rec TxRecord
	cur Record
}

// NewTxLogReader constructs a reader to parse a transaction log from
// r. fileName is used in error messages; it is purely diagnostic.
func NewTxLogReader(r io.Reader, fileName string) *TxLogReader {
	reader := new(TxLogReader)
	reader.Reset(r, fileName)
	return reader
}

// Reset resets the reader to begin reading from a new input.
func (r *TxLogReader) Reset(ior io.Reader, fileName string) {
	r.s = bufio.NewScanner(ior)
	if fileName == "" {
		fileName = "<unknown>"
	}
	r.err = nil
	r.cur = nil
	r.rec = TxRecord{fileName: fileName}
}

func (r *TxLogReader) newSyntaxError(msg string) *SyntaxError {
	return &SyntaxError{r.rec.fileName, r.rec.line, msg}
}

// Scan advances the reader to the next record and reports whether a
// record was read. The caller should use the Record method to get
// the record. Blank lines are ignored. If Scan reaches EOF or an I/O
// error occurs, it returns false, in which case the caller should use
// the Err method to check for errors.
func (r *TxLogReader) Scan() bool {
	if r.err != nil {
		return false
	}
	for r.s.Scan() {
		r.rec.line++
		line := bytes.TrimSpace(r.s.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := r.parseLine(line); err != nil {
			r.cur = err
		} else {
			r.cur = &r.rec
		}
		return true
	}
	if err := r.s.Err(); err != nil {
		r.err = fmt.Errorf("%s:%d: %w", r.rec.fileName, r.rec.line, err)
	}
	return false
}

var (
	skippedTime = []byte("skipped")
	failedTime  = []byte("failed")
	// With --failures-detailed, pgbench reports the failure kind
	// in place of the time.
	serializationTime = []byte("serialization")
	deadlockTime      = []byte("deadlock")
)

func (r *TxLogReader) parseLine(line []byte) *SyntaxError {
	var fields [9][]byte
	n := 0
	for len(line) > 0 && n < len(fields) {
		fields[n], line = splitField(line)
		n++
	}
	if n < 6 || n > 8 {
		return r.newSyntaxError(fmt.Sprintf("expected 6 to 8 fields, got %d", n))
	}

	var err error
	rec := &r.rec
	if rec.ClientID, err = atoi(fields[0]); err != nil {
		return r.newSyntaxError("parsing client_id: " + err.Error())
	}
	if rec.TxNo, err = atoi(fields[1]); err != nil {
		return r.newSyntaxError("parsing transaction_no: " + err.Error())
	}
	rec.Latency, rec.Status = 0, TxOK
	switch f := fields[2]; {
	case bytes.Equal(f, skippedTime):
		rec.Status = TxSkipped
	case bytes.Equal(f, failedTime), bytes.Equal(f, serializationTime), bytes.Equal(f, deadlockTime):
		rec.Status = TxFailed
	default:
		if rec.Latency, err = atof(f); err != nil {
			return r.newSyntaxError("parsing time: " + err.Error())
		}
	}
	if rec.ScriptNo, err = atoi(fields[3]); err != nil {
		return r.newSyntaxError("parsing script_no: " + err.Error())
	}
	epoch, err := atoi(fields[4])
	if err != nil {
		return r.newSyntaxError("parsing time_epoch: " + err.Error())
	}
	us, err := atoi(fields[5])
	if err != nil {
		return r.newSyntaxError("parsing time_us: " + err.Error())
	}
	rec.Time = time.Unix(epoch, us*int64(time.Microsecond)).UTC()

	rec.ScheduleLag, rec.Retries = -1, -1
	if n > 6 {
		if rec.ScheduleLag, err = atof(fields[6]); err != nil {
			return r.newSyntaxError("parsing schedule_lag: " + err.Error())
		}
	}
	if n > 7 {
		if rec.Retries, err = atoi(fields[7]); err != nil {
			return r.newSyntaxError("parsing retries: " + err.Error())
		}
	}
	return nil
}

// Record returns the record that was just read by Scan. This is
// either a *TxRecord or a *SyntaxError indicating a malformed line.
//
// Syntax errors are non-fatal, so the caller can continue to call
// Scan.
//
// If this returns a *TxRecord, the caller should not retain it, as it
// will be overwritten by the next call to Scan.
func (r *TxLogReader) Record() Record {
	if r.cur == nil {
		return noRecord
	}
	return r.cur
}

// Err returns the first non-EOF I/O error that was encountered by the
// TxLogReader.
func (r *TxLogReader) Err() error {
	return r.err
}
