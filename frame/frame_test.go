// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ts(secs ...int) []time.Time {
	out := make([]time.Time, len(secs))
	for i, s := range secs {
		out[i] = t0.Add(time.Duration(s) * time.Second)
	}
	return out
}

func ints(vs ...any) []sql.NullInt64 {
	out := make([]sql.NullInt64, len(vs))
	for i, v := range vs {
		if v != nil {
			out[i] = sql.NullInt64{Int64: int64(v.(int)), Valid: true}
		}
	}
	return out
}

func strs(vs ...any) []sql.NullString {
	out := make([]sql.NullString, len(vs))
	for i, v := range vs {
		if v != nil {
			out[i] = sql.NullString{String: v.(string), Valid: true}
		}
	}
	return out
}

// rows renders f as one line per row: the index offset in seconds
// followed by the presentation of every cell.
func rows(f *Frame) []string {
	var out []string
	for i, t := range f.Index() {
		fields := []string{t.Sub(t0).String()}
		for _, l := range f.Labels() {
			fields = append(fields, FormatCell(f.Column(l), i))
		}
		out = append(out, strings.Join(fields, " "))
	}
	return out
}

func TestBuilder(t *testing.T) {
	f := NewBuilder(ts(0, 1)).
		Add(L("a"), ints(1, 2)).
		Add(L("b"), strs("x", nil)).
		Add(L("a"), ints(3, 4)).
		Done()
	if diff := cmp.Diff([]string{"a", "b"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0s 3 x", "1s 4 <NA>"}, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	if got := f.Kind(L("b")); got != String {
		t.Errorf("Kind(b) = %v, want %v", got, String)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("adding a short column did not panic")
		}
	}()
	NewBuilder(ts(0, 1)).Add(L("a"), ints(1))
}

func TestLabel(t *testing.T) {
	l := L("writes", "client backend", "normal")
	if got, want := l.String(), "writes_client backend_normal"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !l.Equal(L("writes", "client backend", "normal")) {
		t.Errorf("Equal reported false for identical labels")
	}
	if L("a_b").Equal(L("a", "b")) {
		t.Errorf("Equal conflated labels with the same presentation")
	}
}

func TestJoin(t *testing.T) {
	a := NewBuilder(ts(1, 0, 2, 2)).Add(L("a"), ints(10, 0, 20, 21)).Done()
	b := NewBuilder(ts(2, 3, 2, 0)).Add(L("b"), strs("p", "q", "r", "s")).Done()
	j, err := Join(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"0s 0 s",
		"1s 10 <NA>",
		"2s 20 p",
		"2s 20 r",
		"2s 21 p",
		"2s 21 r",
		"3s <NA> q",
	}
	if diff := cmp.Diff(want, rows(j)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestJoinMerge(t *testing.T) {
	// Joining t1 with t2 then t3 keeps the union of rows and all
	// columns, with missing values where a frame had no row.
	t1 := NewBuilder(ts(0, 1)).Add(L("x"), ints(1, 2)).Done()
	t2 := NewBuilder(ts(1, 2)).Add(L("y"), ints(3, 4)).Done()
	t3 := NewBuilder(ts(3)).Add(L("z"), strs("w")).Done()
	acc := Empty
	for _, f := range []*Frame{t1, t2, t3} {
		var err error
		if acc, err = Join(acc, f); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{
		"0s 1 <NA> <NA>",
		"1s 2 3 <NA>",
		"2s <NA> 4 <NA>",
		"3s <NA> <NA> w",
	}
	if diff := cmp.Diff(want, rows(acc)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, acc.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestJoinEmpty(t *testing.T) {
	f := NewBuilder(ts(0)).Add(L("x"), ints(1)).Done()
	if got, _ := Join(Empty, f); got != f {
		t.Errorf("Join(Empty, f) did not return f")
	}
	if got, _ := Join(f, Empty); got != f {
		t.Errorf("Join(f, Empty) did not return f")
	}
}

func TestJoinCollision(t *testing.T) {
	a := NewBuilder(ts(0)).Add(L("x"), ints(1)).Done()
	b := NewBuilder(ts(0)).Add(L("x"), ints(2)).Done()
	_, err := Join(a, b)
	var ce *CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("Join error = %v, want *CollisionError", err)
	}
	if !ce.Label.Equal(L("x")) {
		t.Errorf("collision label = %q, want x", ce.Label)
	}
	// Prefixing disambiguates.
	if _, err := Join(a, b.WithPrefix("other")); err != nil {
		t.Errorf("Join with prefix: %v", err)
	}
}

func TestSortIndex(t *testing.T) {
	f := NewBuilder(ts(2, 0, 1, 0)).Add(L("x"), ints(1, 2, 3, 4)).Done()
	want := []string{"0s 2", "0s 4", "1s 3", "2s 1"}
	if diff := cmp.Diff(want, rows(f.SortIndex())); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestConvert(t *testing.T) {
	f := NewBuilder(ts(0, 1, 2)).
		Add(L("int"), strs("1", nil, "-3")).
		Add(L("float"), strs("1.5", "NaN", "2")).
		Add(L("bool"), strs("t", "f", "TRUE")).
		Add(L("time"), strs("2024-03-01 12:00:00.5+00", nil, "2024-03-01 12:00:01+01")).
		Add(L("str"), strs("1", "x", nil)).
		Add(L("empty"), strs(nil, nil, nil)).
		Add(L("integral"), []sql.NullFloat64{{Float64: 1, Valid: true}, {}, {Float64: 2, Valid: true}}).
		Add(L("fraction"), []sql.NullFloat64{{Float64: 1, Valid: true}, {Float64: 0.5, Valid: true}, {}}).
		Done().Convert()
	want := map[string]Kind{
		"int":      Int,
		"float":    Float,
		"bool":     Bool,
		"time":     Time,
		"str":      String,
		"empty":    String,
		"integral": Int,
		"fraction": Float,
	}
	got := make(map[string]Kind)
	for _, l := range f.Labels() {
		got[l.String()] = f.Kind(l)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
	tc := f.Column(L("time")).([]sql.NullTime)
	if want := t0.Add(-time.Hour + time.Second); !tc[2].Time.Equal(want) {
		t.Errorf("time[2] = %v, want %v", tc[2].Time, want)
	}
	if tc[1].Valid {
		t.Errorf("time[1] is valid, want missing")
	}
}

func TestParseTime(t *testing.T) {
	for _, test := range []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T12:00:00Z", t0},
		{"2024-03-01 12:00:00", t0},
		{"2024-03-01 14:00:00+02", t0},
		{"2024-03-01 17:30:00.25+05:30", t0.Add(250 * time.Millisecond)},
		{"2024-03-01T13:00:00,500000+0100", t0.Add(500 * time.Millisecond)},
		{"03/01/2024 12:00:00 PM", t0},
	} {
		got, err := ParseTime(test.in)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", test.in, err)
			continue
		}
		if !got.Equal(test.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", test.in, got, test.want)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Errorf("ParseTime(yesterday) succeeded")
	}
}

func TestPivot(t *testing.T) {
	long := NewBuilder(ts(0, 0, 1, 1)).
		Add(L("backend"), strs("client", "checkpointer", "client", "walwriter")).
		Add(L("context"), strs("normal", "normal", "normal", "normal")).
		Add(L("writes"), ints(5, 6, 7, 8)).
		Done()
	f, err := long.Pivot(PivotOptions{Columns: []string{"backend", "context"}, Values: []string{"writes"}})
	if err != nil {
		t.Fatal(err)
	}
	wantNames := []string{"checkpointer_normal", "client_normal", "walwriter_normal"}
	if diff := cmp.Diff(wantNames, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := []string{"0s 6 5 <NA>", "1s <NA> 7 8"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	if got, want := f.Labels()[1], L("client", "normal"); !got.Equal(want) {
		t.Errorf("label = %q, want %q", got, want)
	}

	// With Fill, absent combinations are zero.
	f, err = long.Pivot(PivotOptions{Columns: []string{"backend"}, Values: []string{"writes"}, Fill: true})
	if err != nil {
		t.Fatal(err)
	}
	want = []string{"0s 6 5 0", "1s 0 7 8"}
	if diff := cmp.Diff(want, rows(f)); diff != "" {
		t.Errorf("filled rows (-want +got):\n%s", diff)
	}
}

func TestPivotDuplicates(t *testing.T) {
	long := NewBuilder(ts(0, 0, 0)).
		Add(L("event"), strs("Lock", "Lock", nil)).
		Add(L("count"), ints(1, 2, 4)).
		Done()
	if _, err := long.Pivot(PivotOptions{Columns: []string{"event"}, Values: []string{"count"}}); err == nil {
		t.Errorf("Pivot with duplicate cells succeeded")
	}
	f, err := long.Pivot(PivotOptions{Columns: []string{"event"}, Values: []string{"count"}, Sum: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"<NA>", "Lock"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0s 4 3"}, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestPivotMissingDimension(t *testing.T) {
	long := NewBuilder(ts(0, 0, 1)).
		Add(L("event"), strs("", nil, "")).
		Add(L("count"), ints(1, 2, 3)).
		Done()
	f, err := long.Pivot(PivotOptions{Columns: []string{"event"}, Values: []string{"count"}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"", "<NA>"}, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0s 1 2", "1s 3 <NA>"}, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	// A present "<NA>" string cannot share a label with a missing value.
	long = NewBuilder(ts(0, 0)).
		Add(L("event"), strs(NA, nil)).
		Add(L("count"), ints(1, 2)).
		Done()
	if _, err := long.Pivot(PivotOptions{Columns: []string{"event"}, Values: []string{"count"}}); err == nil {
		t.Errorf("Pivot with ambiguous labels succeeded")
	}
}

func TestPivotMultipleValues(t *testing.T) {
	long := NewBuilder(ts(0, 0)).
		Add(L("k"), strs("a", "b")).
		Add(L("reads"), ints(1, 2)).
		Add(L("writes"), ints(3, 4)).
		Done()
	f, err := long.Pivot(PivotOptions{Columns: []string{"k"}, Values: []string{"reads", "writes"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"reads_a", "reads_b", "writes_a", "writes_b"}
	if diff := cmp.Diff(want, f.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestFromRecords(t *testing.T) {
	const data = `[{"a": 1, "b": 1.5, "c": "x", "d": true},
		{"a": 2, "b": 2, "c": 3, "e": null}]`
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var recs []map[string]any
	if err := dec.Decode(&recs); err != nil {
		t.Fatal(err)
	}
	f, err := FromRecords(ts(0, 1), recs)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]Kind{"a": Int, "b": Float, "c": String, "d": Bool, "e": String}
	got := make(map[string]Kind)
	for _, l := range f.Labels() {
		got[l.String()] = f.Kind(l)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
	wantRows := []string{"0s 1 1.5 x true <NA>", "1s 2 2 3 <NA> <NA>"}
	if diff := cmp.Diff(wantRows, rows(f)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestSnapshot(t *testing.T) {
	f := NewBuilder(ts(0, 1)).
		Add(L("q", "0.5"), []sql.NullFloat64{{Float64: 0.1, Valid: true}, {}}).
		Add(L("n"), ints(nil, 7)).
		Add(L("s"), strs("a", "b")).
		Add(L("ok"), []sql.NullBool{{Bool: true, Valid: true}, {}}).
		Add(L("at"), []sql.NullTime{{}, {Time: t0, Valid: true}}).
		Done()
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	g, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(f.Labels(), g.Labels()); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rows(f), rows(g)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := Empty.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if g, err := Decode(&buf); err != nil || !g.IsEmpty() {
		t.Errorf("Decode(Empty) = %v, %v; want empty frame", g, err)
	}
}

func TestTextColumn(t *testing.T) {
	col := []sql.NullFloat64{{Float64: 0.1, Valid: true}, {}, {Float64: 1e300, Valid: true}}
	back, err := ColumnFromText(Float, TextColumn(col))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(any(col), back); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	f := NewBuilder(ts(0, 1, 2, 3)).Add(L("x"), ints(1, 2, 3, 4)).Done()
	odd := f.Filter(func(row int) bool { return row%2 == 1 })
	if diff := cmp.Diff([]string{"1s 2", "3s 4"}, rows(odd)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	none := f.Filter(func(int) bool { return false })
	if none.Len() != 0 || len(none.Labels()) != 1 {
		t.Errorf("Filter(false) has %d rows and %d columns, want 0 and 1", none.Len(), len(none.Labels()))
	}
}
