// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runstore stores merged run frames in a SQL database.
//
// Each stored frame is a run, identified by a random UUID. Cells are
// stored as text in the lossless form of frame.TextColumn, with
// missing cells omitted. Timestamps keep their offset from UTC but not
// their zone name, so Frame returns the inserted frame up to zone
// names.
package runstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/pgrun/runview/frame"
)

// ErrNotFound is returned by Frame for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// DB stores runs in a SQL database. Its methods may be called
// concurrently.
type DB struct {
	sql *sql.DB

	insertRun    *sql.Stmt
	insertRow    *sql.Stmt
	insertColumn *sql.Stmt
	insertCell   *sql.Stmt
}

// OpenSQL opens the run store in the database named by driver and
// dsn, as for sql.Open, creating its tables if needed. The table
// definitions are written for sqlite3 and mysql.
func OpenSQL(driver, dsn string) (*DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db := &DB{sql: conn}
	if err := db.init(driver); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// init runs the open hook for driver, then creates the tables and
// prepares the statements.
func (db *DB) init(driver string) error {
	if hook, ok := openHooks[driver]; ok {
		if err := hook(db.sql); err != nil {
			return err
		}
	}
	if err := db.createTables(driver); err != nil {
		return err
	}
	return db.prepareStatements()
}

// openHooks holds per-driver setup, keyed by driver name.
var openHooks = map[string]func(*sql.DB) error{}

// RegisterOpenHook arranges for hook to run on every database opened
// with driver. Driver packages call it from init.
func RegisterOpenHook(driver string, hook func(*sql.DB) error) {
	openHooks[driver] = hook
}

// createTmpl holds the table definitions. It is executed with a map
// whose only true key is the driver name, so that type differences
// can be selected with {{if .sqlite3}}.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID VARCHAR(36) PRIMARY KEY,
	Root VARCHAR(4096),
	Loaded BIGINT,
	NumRows BIGINT,
	NumColumns BIGINT
);
CREATE TABLE IF NOT EXISTS RunRows (
	RunID VARCHAR(36),
	RowNum BIGINT,
	TS BIGINT,
	TZ INT,
	PRIMARY KEY (RunID, RowNum),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS RunColumns (
	RunID VARCHAR(36),
	Col BIGINT,
	Label VARCHAR(1024),
	Kind VARCHAR(16),
	PRIMARY KEY (RunID, Col),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS Cells (
	RunID VARCHAR(36),
	RowNum BIGINT,
	Col BIGINT,
	Value {{if .sqlite3}}TEXT{{else}}VARCHAR(8192){{end}},
	PRIMARY KEY (RunID, RowNum, Col),
	FOREIGN KEY (RunID, RowNum) REFERENCES RunRows(RunID, RowNum) ON UPDATE CASCADE ON DELETE CASCADE,
	FOREIGN KEY (RunID, Col) REFERENCES RunColumns(RunID, Col) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables executes each statement of createTmpl in turn.
func (db *DB) createTables(driver string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driver: true}); err != nil {
		return err
	}
	for _, stmt := range strings.Split(buf.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := db.sql.Exec(stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

// prepareStatements prepares the insert statements used by
// InsertFrame.
func (db *DB) prepareStatements() error {
	var err error
	for _, p := range []struct {
		stmt **sql.Stmt
		q    string
	}{
		{&db.insertRun, "INSERT INTO Runs(RunID, Root, Loaded, NumRows, NumColumns) VALUES (?, ?, ?, ?, ?)"},
		{&db.insertRow, "INSERT INTO RunRows(RunID, RowNum, TS, TZ) VALUES (?, ?, ?, ?)"},
		{&db.insertColumn, "INSERT INTO RunColumns(RunID, Col, Label, Kind) VALUES (?, ?, ?, ?)"},
		{&db.insertCell, "INSERT INTO Cells(RunID, RowNum, Col, Value) VALUES (?, ?, ?, ?)"},
	} {
		if *p.stmt, err = db.sql.Prepare(p.q); err != nil {
			return err
		}
	}
	return nil
}

// now is a hook for testing.
var now = time.Now

// A Run describes a stored frame.
type Run struct {
	ID      string
	Root    string // run directory the frame was loaded from
	Loaded  time.Time
	Rows    int
	Columns int
}

// InsertFrame stores f, loaded from the run directory root, as a new
// run and returns its ID.
func (db *DB) InsertFrame(ctx context.Context, root string, f *frame.Frame) (id string, err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	id = uuid.NewString()
	labels := f.Labels()
	if _, err = tx.StmtContext(ctx, db.insertRun).ExecContext(ctx, id, root, now().UnixNano(), f.Len(), len(labels)); err != nil {
		return "", err
	}
	insertRow := tx.StmtContext(ctx, db.insertRow)
	for i, t := range f.Index() {
		_, offset := t.Zone()
		if _, err = insertRow.ExecContext(ctx, id, i, t.UnixNano(), offset); err != nil {
			return "", err
		}
	}
	insertColumn := tx.StmtContext(ctx, db.insertColumn)
	insertCell := tx.StmtContext(ctx, db.insertCell)
	for c, l := range labels {
		label, err := json.Marshal([]string(l))
		if err != nil {
			return "", err
		}
		if _, err = insertColumn.ExecContext(ctx, id, c, string(label), f.Kind(l).String()); err != nil {
			return "", err
		}
		for i, v := range frame.TextColumn(f.Column(l)) {
			if !v.Valid {
				continue
			}
			if _, err = insertCell.ExecContext(ctx, id, i, c, v.String); err != nil {
				return "", err
			}
		}
	}
	return id, nil
}

// Runs returns the stored runs, oldest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT RunID, Root, Loaded, NumRows, NumColumns FROM Runs ORDER BY Loaded, RunID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var loaded int64
		if err := rows.Scan(&r.ID, &r.Root, &loaded, &r.Rows, &r.Columns); err != nil {
			return nil, err
		}
		r.Loaded = time.Unix(0, loaded).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Frame returns the frame stored as run id.
func (db *DB) Frame(ctx context.Context, id string) (*frame.Frame, error) {
	var nrows, ncols int
	err := db.sql.QueryRowContext(ctx, "SELECT NumRows, NumColumns FROM Runs WHERE RunID = ?", id).Scan(&nrows, &ncols)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	index := make([]time.Time, nrows)
	err = db.query(ctx, "SELECT RowNum, TS, TZ FROM RunRows WHERE RunID = ?", id, func(rows *sql.Rows) error {
		var i, offset int
		var ts int64
		if err := rows.Scan(&i, &ts, &offset); err != nil {
			return err
		}
		if i < 0 || i >= nrows {
			return fmt.Errorf("run %s: row %d out of range", id, i)
		}
		index[i] = time.Unix(0, ts).In(zone(offset))
		return nil
	})
	if err != nil {
		return nil, err
	}

	labels := make([]frame.Label, ncols)
	kinds := make([]frame.Kind, ncols)
	err = db.query(ctx, "SELECT Col, Label, Kind FROM RunColumns WHERE RunID = ?", id, func(rows *sql.Rows) error {
		var c int
		var label, kind string
		if err := rows.Scan(&c, &label, &kind); err != nil {
			return err
		}
		if c < 0 || c >= ncols {
			return fmt.Errorf("run %s: column %d out of range", id, c)
		}
		if err := json.Unmarshal([]byte(label), &labels[c]); err != nil {
			return fmt.Errorf("run %s: column %d label: %w", id, c, err)
		}
		k, err := frame.ParseKind(kind)
		if err != nil {
			return fmt.Errorf("run %s: column %d: %w", id, c, err)
		}
		kinds[c] = k
		return nil
	})
	if err != nil {
		return nil, err
	}

	text := make([][]sql.NullString, ncols)
	for c := range text {
		text[c] = make([]sql.NullString, nrows)
	}
	err = db.query(ctx, "SELECT RowNum, Col, Value FROM Cells WHERE RunID = ?", id, func(rows *sql.Rows) error {
		var i, c int
		var v string
		if err := rows.Scan(&i, &c, &v); err != nil {
			return err
		}
		if i < 0 || i >= nrows || c < 0 || c >= ncols {
			return fmt.Errorf("run %s: cell (%d, %d) out of range", id, i, c)
		}
		text[c][i] = sql.NullString{String: v, Valid: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b := frame.NewBuilder(index)
	for c, l := range labels {
		col, err := frame.ColumnFromText(kinds[c], text[c])
		if err != nil {
			return nil, fmt.Errorf("run %s: column %s: %w", id, l, err)
		}
		b.Add(l, col)
	}
	return b.Done(), nil
}

// query runs q with arg and calls scan for each result row.
func (db *DB) query(ctx context.Context, q string, arg any, scan func(*sql.Rows) error) error {
	rows, err := db.sql.QueryContext(ctx, q, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the prepared statements and closes the database.
func (db *DB) Close() error {
	for _, stmt := range []*sql.Stmt{db.insertRun, db.insertRow, db.insertColumn, db.insertCell} {
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return db.sql.Close()
}

// zone returns the location of a timestamp stored with the given
// offset in seconds east of UTC.
func zone(offset int) *time.Location {
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone("", offset)
}
