// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package index implements the ordered index and per-thread view layer
// that sits underneath every Relation. Each column order of a relation is
// backed by a github.com/google/btree ordered tree keyed by the tuple
// compared lexicographically under that order's permutation, mirroring the
// degree-tunable B-tree idiom the reference corpus itself uses for its own
// interval-index rewrite of the same library.
package index

import (
	"github.com/google/btree"

	"github.com/ramengine/ramengine/domain"
)

// degree is the B-tree minimum degree; 32 matches the corpus's own
// benchmarked default for its interval-tree rewrite of google/btree.
const degree = 32

// Tuple is a fixed-length ordered sequence of Domain cells.
type Tuple []domain.Domain

func (t Tuple) clone() Tuple {
	c := make(Tuple, len(t))
	copy(c, t)
	return c
}

// Order is a permutation of [0..arity) describing the column order an Index
// iterates and compares under.
type Order []int

// Identity returns the natural column order 0..arity-1.
func Identity(arity int) Order {
	o := make(Order, arity)
	for i := range o {
		o[i] = i
	}
	return o
}

func (o Order) less(a, b Tuple) bool {
	for _, col := range o {
		if a[col] != b[col] {
			return a[col] < b[col]
		}
	}
	return false
}

// Index is an ordered set of tuples under a fixed column order. It is safe
// for concurrent readers; writers must hold the enclosing Relation's lock.
type Index struct {
	order Order
	tree  *btree.BTreeG[Tuple]
}

// New returns an empty Index ordered by order.
func New(order Order) *Index {
	o := order
	return &Index{
		order: o,
		tree:  btree.NewG(degree, o.less),
	}
}

// Order returns the column permutation this index is ordered under.
func (ix *Index) Order() Order { return ix.order }

// Len returns the number of tuples in the index.
func (ix *Index) Len() int { return ix.tree.Len() }

// Insert adds tuple to the index. It reports whether the tuple was newly
// added; it returns false when the tuple was already present (no
// duplicates are kept under the full key).
func (ix *Index) Insert(tuple Tuple) (inserted bool) {
	_, existed := ix.tree.ReplaceOrInsert(tuple.clone())
	return !existed
}

// Erase removes tuple from the index, reporting whether it was present.
func (ix *Index) Erase(tuple Tuple) bool {
	_, existed := ix.tree.Delete(tuple)
	return existed
}

// Contains reports whether the exact tuple is present (full-tuple
// membership test).
func (ix *Index) Contains(tuple Tuple) bool {
	_, ok := ix.tree.Get(tuple)
	return ok
}

// Purge removes every tuple from the index.
func (ix *Index) Purge() {
	ix.tree.Clear(false)
}

// Scan invokes fn for every tuple in index order. Iteration stops early if
// fn returns false.
func (ix *Index) Scan(fn func(Tuple) bool) {
	ix.tree.Ascend(func(t Tuple) bool { return fn(t) })
}

// RangeInclusive invokes fn for every tuple t with lo <= t <= hi
// componentwise under this index's order (inclusive on both ends). It is
// the primitive CAL_SEARCH_BOUND compiles down to. AscendGreaterOrEqual's
// exclusive-upper-bound sibling isn't used directly because hi may be the
// maximum representable Domain in a column (e.g. the ^uint64(0) bound a
// wildcard or provenance aux column spans to), which would overflow a synthetic "one past hi" bound; instead
// the walk stops as soon as it sees a tuple that compares greater than hi.
func (ix *Index) RangeInclusive(lo, hi Tuple, fn func(Tuple) bool) {
	ix.tree.AscendGreaterOrEqual(lo, func(t Tuple) bool {
		if ix.order.less(hi, t) {
			return false
		}
		return fn(t)
	})
}

// Partition is one disjoint chunk of a partitioned scan.
type Partition struct {
	tuples []Tuple
}

// Scan invokes fn for every tuple in this partition, in index order.
func (p Partition) Scan(fn func(Tuple) bool) {
	for _, t := range p.tuples {
		if !fn(t) {
			return
		}
	}
}

// Len reports how many tuples this partition holds.
func (p Partition) Len() int { return len(p.tuples) }

// PartitionScan splits the whole index into at most n disjoint partitions
// whose union is the full scan and whose sizes approximate len/n without
// exceeding it materially; it is the parallelism unit for Parallel* tuple
// loops.
func (ix *Index) PartitionScan(n int) []Partition {
	return partition(ix.All(), n)
}

// PartitionRange is PartitionScan restricted to [lo, hi].
func (ix *Index) PartitionRange(lo, hi Tuple, n int) []Partition {
	var all []Tuple
	ix.RangeInclusive(lo, hi, func(t Tuple) bool {
		all = append(all, t)
		return true
	})
	return partition(all, n)
}

// All materializes every tuple in index order. Used by PartitionScan and by
// tests asserting index coherence across sibling indexes of one relation.
func (ix *Index) All() []Tuple {
	all := make([]Tuple, 0, ix.tree.Len())
	ix.tree.Ascend(func(t Tuple) bool {
		all = append(all, t)
		return true
	})
	return all
}

func partition(all []Tuple, n int) []Partition {
	if n < 1 {
		n = 1
	}
	total := len(all)
	if total == 0 {
		return nil
	}
	if n > total {
		n = total
	}
	base := total / n
	rem := total % n
	parts := make([]Partition, 0, n)
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		parts = append(parts, Partition{tuples: all[idx : idx+size]})
		idx += size
	}
	return parts
}

// View is a lightweight, per-goroutine handle into one Index. Views do not
// own data and their lifetime is scoped to the enclosing Query; they exist
// so relation lookups performed at query-entry can be reused across the
// outer filter and the nested loop without re-resolving the relation.
type View struct {
	ix *Index
}

// NewView creates a view over ix. Construction is expected to write into a
// fixed, pre-sized slot in the caller's Context view vector, avoiding
// allocation on the hot path.
func NewView(ix *Index) *View { return &View{ix: ix} }

// Contains reports point membership of tuple in the underlying index.
func (v *View) Contains(tuple Tuple) bool { return v.ix.Contains(tuple) }

// ContainsRange reports whether any tuple lies within [lo, hi] componentwise.
func (v *View) ContainsRange(lo, hi Tuple) bool {
	found := false
	v.ix.RangeInclusive(lo, hi, func(Tuple) bool {
		found = true
		return false
	})
	return found
}

// Range invokes fn for every tuple within [lo, hi] componentwise, in index
// order, stopping early if fn returns false.
func (v *View) Range(lo, hi Tuple, fn func(Tuple) bool) {
	v.ix.RangeInclusive(lo, hi, fn)
}

// Scan invokes fn for every tuple in the underlying index, in index order.
func (v *View) Scan(fn func(Tuple) bool) { v.ix.Scan(fn) }
