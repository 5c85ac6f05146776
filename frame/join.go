// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"fmt"
	"sort"
	"time"
)

// A CollisionError reports that two joined Frames both have a column
// with the same Label.
type CollisionError struct {
	Label Label
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("column %q exists on both sides of join", e.Label.String())
}

// Join returns the outer join of a and b on their indexes.
//
// The result's index is the sorted union of both indexes. A timestamp
// that occurs m times in a and n times in b produces m*n rows, one per
// pairing; a timestamp that occurs on only one side produces rows whose
// cells from the other side are missing. The result has a's columns
// followed by b's columns.
//
// Joining with an empty Frame returns the other Frame unchanged. If a
// and b share a column Label, Join returns a *CollisionError.
func Join(a, b *Frame) (*Frame, error) {
	if a.IsEmpty() {
		return b, nil
	}
	if b.IsEmpty() {
		return a, nil
	}
	for _, l := range b.labels {
		if a.Has(l) {
			return nil, &CollisionError{l}
		}
	}

	pa, pb := sortedOrder(a.index), sortedOrder(b.index)
	var index []time.Time
	var ia, ib []int
	i, j := 0, 0
	for i < len(pa) || j < len(pb) {
		var ta, tb time.Time
		switch {
		case j == len(pb):
			ta = a.index[pa[i]]
			index, ia, ib = append(index, ta), append(ia, pa[i]), append(ib, -1)
			i++
			continue
		case i == len(pa):
			tb = b.index[pb[j]]
			index, ia, ib = append(index, tb), append(ia, -1), append(ib, pb[j])
			j++
			continue
		}
		ta, tb = a.index[pa[i]], b.index[pb[j]]
		switch {
		case ta.Before(tb):
			index, ia, ib = append(index, ta), append(ia, pa[i]), append(ib, -1)
			i++
		case tb.Before(ta):
			index, ia, ib = append(index, tb), append(ia, -1), append(ib, pb[j])
			j++
		default:
			// Find the runs of equal timestamps on both sides
			// and emit their cross product.
			ei := i
			for ei < len(pa) && a.index[pa[ei]].Equal(ta) {
				ei++
			}
			ej := j
			for ej < len(pb) && b.index[pb[ej]].Equal(tb) {
				ej++
			}
			for _, x := range pa[i:ei] {
				for _, y := range pb[j:ej] {
					index, ia, ib = append(index, a.index[x]), append(ia, x), append(ib, y)
				}
			}
			i, j = ei, ej
		}
	}

	nb := NewBuilder(index)
	for _, l := range a.labels {
		nb.Add(l, selectRows(a.Column(l), ia))
	}
	for _, l := range b.labels {
		nb.Add(l, selectRows(b.Column(l), ib))
	}
	return nb.Done(), nil
}

// sortedOrder returns the permutation that stably sorts index.
func sortedOrder(index []time.Time) []int {
	perm := make([]int, len(index))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return index[perm[i]].Before(index[perm[j]])
	})
	return perm
}
