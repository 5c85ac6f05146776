// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pgrun/runview/frame"
	. "github.com/pgrun/runview/runstore"
	_ "github.com/pgrun/runview/runstore/sqlite3"
)

func newDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQL("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})
	return db
}

var (
	t0  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cet = time.FixedZone("", 3600)
)

func testFrame() *frame.Frame {
	index := []time.Time{t0, t0.Add(500 * time.Millisecond), t0.Add(2 * time.Second).In(cet)}
	return frame.NewBuilder(index).
		Add(frame.L("tps"), []sql.NullFloat64{{Float64: 0.1, Valid: true}, {}, {Float64: 1e300, Valid: true}}).
		Add(frame.L("wal", "records"), []sql.NullInt64{{Int64: -3, Valid: true}, {Int64: 1 << 62, Valid: true}, {}}).
		Add(frame.L("note"), []sql.NullString{{String: "a|b \"c\"", Valid: true}, {String: "", Valid: true}, {}}).
		Add(frame.L("ok"), []sql.NullBool{{Bool: true, Valid: true}, {}, {Bool: false, Valid: true}}).
		Add(frame.L("reset"), []sql.NullTime{{}, {Time: t0.Add(-time.Hour).In(cet), Valid: true}, {}}).
		Done()
}

// dump renders every cell of f, with its kind and label. Timestamps
// keep their zone offsets.
func dump(f *frame.Frame) []string {
	var out []string
	for i, t := range f.Index() {
		out = append(out, t.Format(time.RFC3339Nano))
		for _, l := range f.Labels() {
			out = append(out, l.String()+":"+f.Kind(l).String()+"="+frame.FormatCell(f.Column(l), i))
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	want := testFrame()
	id, err := db.InsertFrame(ctx, "/runs/a", want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.Frame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(dump(want), dump(got)); diff != "" {
		t.Errorf("frame (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Labels(), got.Labels()); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestEmptyFrame(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	id, err := db.InsertFrame(ctx, "/runs/empty", frame.Empty)
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.Frame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsEmpty() {
		t.Errorf("got %d rows, %d columns, want an empty frame", got.Len(), len(got.Labels()))
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	defer SetNow(time.Time{})

	var ids []string
	for i, root := range []string{"/runs/a", "/runs/b"} {
		SetNow(t0.Add(time.Duration(i) * time.Minute))
		id, err := db.InsertFrame(ctx, root, testFrame())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	runs, err := db.Runs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Run{
		{ID: ids[0], Root: "/runs/a", Loaded: t0, Rows: 3, Columns: 5},
		{ID: ids[1], Root: "/runs/b", Loaded: t0.Add(time.Minute), Rows: 3, Columns: 5},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
}

func TestFrameNotFound(t *testing.T) {
	db := newDB(t)
	if _, err := db.Frame(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestForeignKeys(t *testing.T) {
	db := newDB(t)
	_, err := DBSQL(db).Exec("INSERT INTO RunRows(RunID, RowNum, TS) VALUES ('missing', 0, 0)")
	if err == nil {
		t.Errorf("row for a missing run accepted")
	}
}
