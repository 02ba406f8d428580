// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package index

import (
	"testing"

	"github.com/ramengine/ramengine/domain"
)

func tup(vals ...int64) Tuple {
	t := make(Tuple, len(vals))
	for i, v := range vals {
		t[i] = domain.FromSigned(v)
	}
	return t
}

func TestInsertAndContains(t *testing.T) {
	ix := New(Identity(2))
	if !ix.Insert(tup(1, 2)) {
		t.Fatal("Insert reported duplicate on first insert")
	}
	if ix.Insert(tup(1, 2)) {
		t.Error("Insert reported non-duplicate on repeat insert")
	}
	if !ix.Contains(tup(1, 2)) {
		t.Error("Contains(1,2) = false, want true")
	}
	if ix.Contains(tup(1, 3)) {
		t.Error("Contains(1,3) = true, want false")
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestEraseAndPurge(t *testing.T) {
	ix := New(Identity(1))
	ix.Insert(tup(5))
	if !ix.Erase(tup(5)) {
		t.Error("Erase reported absent for present tuple")
	}
	if ix.Contains(tup(5)) {
		t.Error("Contains after erase = true, want false")
	}
	ix.Insert(tup(1))
	ix.Insert(tup(2))
	ix.Purge()
	if ix.Len() != 0 {
		t.Errorf("Len() after Purge = %d, want 0", ix.Len())
	}
}

func TestScanOrder(t *testing.T) {
	ix := New(Identity(1))
	for _, v := range []int64{5, 1, 3, 2, 4} {
		ix.Insert(tup(v))
	}
	var got []int64
	ix.Scan(func(t Tuple) bool {
		got = append(got, t[0].AsSigned())
		return true
	})
	want := []int64{1, 2, 3, 4, 5}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("Scan()[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestRangeInclusive(t *testing.T) {
	ix := New(Identity(1))
	for _, v := range []int64{1, 2, 3, 4, 5} {
		ix.Insert(tup(v))
	}
	var got []int64
	ix.RangeInclusive(tup(2), tup(4), func(t Tuple) bool {
		got = append(got, t[0].AsSigned())
		return true
	})
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("RangeInclusive(2,4) = %v, want [2 3 4]", got)
	}
}

func TestRangeInclusiveStopsAtMaxSentinel(t *testing.T) {
	ix := New(Identity(1))
	ix.Insert(Tuple{domain.FromSigned(1)})
	ix.Insert(Tuple{domain.Domain(^uint64(0) >> 1)}) // max int64 bit pattern
	hi := Tuple{domain.FromSigned(^int64(0) >> 1)}
	var count int
	ix.RangeInclusive(tup(0), hi, func(Tuple) bool { count++; return true })
	if count != 2 {
		t.Errorf("RangeInclusive up to max sentinel saw %d tuples, want 2", count)
	}
}

func TestPartitionScanCoversEveryTuple(t *testing.T) {
	ix := New(Identity(1))
	for i := int64(0); i < 17; i++ {
		ix.Insert(tup(i))
	}
	parts := ix.PartitionScan(4)
	total := 0
	for _, p := range parts {
		total += p.Len()
	}
	if total != 17 {
		t.Errorf("partitioned total = %d, want 17", total)
	}
}

func TestPartitionScanOnEmptyIndex(t *testing.T) {
	ix := New(Identity(1))
	if parts := ix.PartitionScan(4); parts != nil {
		t.Errorf("PartitionScan on empty index = %v, want nil", parts)
	}
}

func TestViewRangeAndContains(t *testing.T) {
	ix := New(Identity(2))
	ix.Insert(tup(1, 10))
	ix.Insert(tup(1, 20))
	ix.Insert(tup(2, 30))
	v := NewView(ix)
	if !v.Contains(tup(1, 10)) {
		t.Error("View.Contains(1,10) = false, want true")
	}
	if !v.ContainsRange(tup(1, 0), tup(1, 100)) {
		t.Error("View.ContainsRange(1,*) = false, want true")
	}
	if v.ContainsRange(tup(3, 0), tup(3, 100)) {
		t.Error("View.ContainsRange(3,*) = true, want false")
	}
}

func TestOrderPermutesComparison(t *testing.T) {
	// Order{1,0} compares by column 1 first, so inserting in column-0
	// order still yields column-1 order on scan.
	ix := New(Order{1, 0})
	ix.Insert(tup(1, 9))
	ix.Insert(tup(2, 1))
	var got []int64
	ix.Scan(func(t Tuple) bool { got = append(got, t[1].AsSigned()); return true })
	if got[0] != 1 || got[1] != 9 {
		t.Errorf("scan under Order{1,0} = %v, want [1 9]", got)
	}
}
