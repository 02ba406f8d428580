// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package record

import (
	"testing"

	"github.com/ramengine/ramengine/domain"
)

func rec(vals ...int64) []domain.Domain {
	out := make([]domain.Domain, len(vals))
	for i, v := range vals {
		out[i] = domain.FromSigned(v)
	}
	return out
}

func TestPackUnpackRoundTrip(t *testing.T) {
	tbl := New()
	h := tbl.Pack(rec(1, 2, 3))
	got := tbl.Unpack(h, 3)
	want := rec(1, 2, 3)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Unpack()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPackIsStableForEqualTuples(t *testing.T) {
	tbl := New()
	a := tbl.Pack(rec(1, 2))
	b := tbl.Pack(rec(1, 2))
	if a != b {
		t.Errorf("Pack(same tuple) twice = %v, %v, want equal handles", a, b)
	}
}

func TestPackDistinguishesTuples(t *testing.T) {
	tbl := New()
	a := tbl.Pack(rec(1, 2))
	b := tbl.Pack(rec(2, 1))
	if a == b {
		t.Error("Pack((1,2)) == Pack((2,1)), want distinct handles")
	}
}

func TestEmptyTuplePacksToNil(t *testing.T) {
	tbl := New()
	if h := tbl.Pack(nil); h != domain.Nil {
		t.Errorf("Pack(nil) = %v, want domain.Nil", h)
	}
}

func TestUnpackNilHandleYieldsZeroTuple(t *testing.T) {
	tbl := New()
	got := tbl.Unpack(domain.Nil, 3)
	for i, d := range got {
		if d != domain.Nil {
			t.Errorf("Unpack(Nil, 3)[%d] = %v, want Nil", i, d)
		}
	}
}

func TestUnpackUnknownHandlePanics(t *testing.T) {
	tbl := New()
	defer func() {
		if recover() == nil {
			t.Error("Unpack of unknown handle did not panic")
		}
	}()
	tbl.Unpack(domain.Domain(999), 1)
}

func TestUnpackArityMismatchPanics(t *testing.T) {
	tbl := New()
	h := tbl.Pack(rec(1, 2))
	defer func() {
		if recover() == nil {
			t.Error("Unpack with wrong arity did not panic")
		}
	}()
	tbl.Unpack(h, 3)
}
