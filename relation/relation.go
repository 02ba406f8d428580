// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package relation implements the named, arity-typed relation container and
// its representation variants (BTree, BTreeDelete, Eqrel, Provenance,
// External adapter), each owning one or more column-ordered indexes built
// on top of the index package.
package relation

import (
	"sync"

	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
)

// Kind distinguishes a relation's representation.
type Kind uint8

const (
	KindBTree Kind = iota
	KindBTreeDelete
	KindEqrel
	KindProvenance
	KindExternal
)

// External is the narrow interface an out-of-process data source must
// satisfy to back an External adapter relation; it is consumed, not
// implemented, by this package.
type External interface {
	// Load returns every tuple the source currently holds, each of length
	// arity+auxArity.
	Load() ([]index.Tuple, error)
}

// Relation owns one or more Indexes for one tuple type. All indexes of a
// Relation contain the same set of tuples; callers never observe a
// Relation whose indexes have diverged.
type Relation struct {
	mu sync.RWMutex

	name     string
	arity    int
	auxArity int
	kind     Kind

	indexes []*index.Index
	orders  []index.Order

	// external is non-nil only for KindExternal relations.
	external External
	loaded   bool

	// shadow marks a relation whose engine-side inserts are silently
	// dropped because an out-of-process source is authoritative for it;
	// it generalizes the reference corpus's single hard-coded relation
	// name special-case into a per-declaration attribute (see DESIGN.md).
	shadow bool
}

// New constructs a Relation named name with the given arity, auxiliary
// arity (trailing provenance/lattice columns excluded from key semantics in
// some operations), representation kind, and the ordered list of column
// orders the index analysis assigned it. At least one order (normally the
// identity order) must be supplied.
func New(name string, arity, auxArity int, kind Kind, orders []index.Order) *Relation {
	if len(orders) == 0 {
		orders = []index.Order{index.Identity(arity + auxArity)}
	}
	r := &Relation{
		name:     name,
		arity:    arity,
		auxArity: auxArity,
		kind:     kind,
		orders:   orders,
	}
	r.indexes = make([]*index.Index, len(orders))
	for i, o := range orders {
		r.indexes[i] = index.New(o)
	}
	return r
}

// NewExternal constructs an External-adapter Relation. Its content is
// lazily populated from src on first access; Insert requests issued by the
// engine are silently ignored, since src is authoritative.
func NewExternal(name string, arity, auxArity int, src External) *Relation {
	r := New(name, arity, auxArity, KindExternal, nil)
	r.external = src
	return r
}

// MarkShadow flags the relation so engine-side inserts become no-ops, the
// generalized form of the corpus's single hard-coded relation-name hook.
// The flag does not change Size or Empty: they report the relation's own
// indexes, which are loaded from a source only for a KindExternal relation.
func (r *Relation) MarkShadow() { r.shadow = true }

// IsShadow reports whether the relation was declared with the shadow
// attribute.
func (r *Relation) IsShadow() bool { return r.shadow }

// Name returns the relation's declared name.
func (r *Relation) Name() string { return r.name }

// Arity returns the relation's data-column count (excluding aux columns).
func (r *Relation) Arity() int { return r.arity }

// AuxArity returns the relation's trailing auxiliary column count.
func (r *Relation) AuxArity() int { return r.auxArity }

// TotalArity returns Arity()+AuxArity().
func (r *Relation) TotalArity() int { return r.arity + r.auxArity }

// Kind returns the relation's representation kind.
func (r *Relation) Kind() Kind { return r.kind }

func (r *Relation) ensureLoaded() {
	if r.kind != KindExternal || r.loaded {
		return
	}
	tuples, err := r.external.Load()
	r.loaded = true
	if err != nil {
		return
	}
	for _, t := range tuples {
		for _, ix := range r.indexes {
			ix.Insert(t)
		}
	}
}

// Insert adds tuple to every index of the relation. It is a silent no-op on
// a shadow relation or on an External adapter (both are populated from
// outside the engine), and reports whether the tuple was newly added.
func (r *Relation) Insert(tuple index.Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shadow || r.kind == KindExternal {
		return false
	}
	inserted := false
	for _, ix := range r.indexes {
		if ix.Insert(tuple) {
			inserted = true
		}
	}
	if inserted && r.kind == KindEqrel {
		r.closeEqrelLocked()
	}
	return inserted
}

// Erase removes tuple from every index. Only meaningful on KindBTreeDelete
// relations; other kinds treat it as a no-op, matching the corpus
// invariant that only the delete-capable representation supports erase.
func (r *Relation) Erase(tuple index.Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kind != KindBTreeDelete {
		return false
	}
	erased := false
	for _, ix := range r.indexes {
		if ix.Erase(tuple) {
			erased = true
		}
	}
	return erased
}

// Clear empties every index of the relation.
func (r *Relation) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ix := range r.indexes {
		ix.Purge()
	}
	r.loaded = false
}

// Purge is an alias for Clear, matching the relation-layer vocabulary used
// by LogSize/IO/teardown call sites.
func (r *Relation) Purge() { r.Clear() }

// Size returns the tuple count, consulting any sibling index (they are
// kept coherent).
func (r *Relation) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.kind == KindExternal {
		r.ensureLoadedRLocked()
	}
	return r.indexes[0].Len()
}

// ensureLoadedRLocked upgrades to a write lock to perform the one-shot
// external population; called only while holding the read lock, which it
// releases and re-acquires around the upgrade.
func (r *Relation) ensureLoadedRLocked() {
	if r.loaded {
		return
	}
	r.mu.RUnlock()
	r.mu.Lock()
	r.ensureLoaded()
	r.mu.Unlock()
	r.mu.RLock()
}

// Empty reports whether the relation currently holds no tuples.
func (r *Relation) Empty() bool { return r.Size() == 0 }

// GetIndexOrder returns the column order at indexPos.
func (r *Relation) GetIndexOrder(indexPos int) index.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orders[indexPos]
}

// CreateView returns a View into the index at indexPos, lazily populating
// an External adapter's content first.
func (r *Relation) CreateView(indexPos int) *index.View {
	r.mu.Lock()
	if r.kind == KindExternal {
		r.ensureLoaded()
	}
	ix := r.indexes[indexPos]
	r.mu.Unlock()
	return index.NewView(ix)
}

// Scan invokes fn for every tuple in the relation's primary (index 0)
// order.
func (r *Relation) Scan(fn func(index.Tuple) bool) {
	r.mu.Lock()
	if r.kind == KindExternal {
		r.ensureLoaded()
	}
	ix := r.indexes[0]
	r.mu.Unlock()
	ix.Scan(fn)
}

// PartitionScan splits the relation's primary index into n disjoint
// partitions for Parallel* tuple loops.
func (r *Relation) PartitionScan(n int) []index.Partition {
	r.mu.Lock()
	if r.kind == KindExternal {
		r.ensureLoaded()
	}
	ix := r.indexes[0]
	r.mu.Unlock()
	return ix.PartitionScan(n)
}

// PartitionRange splits [lo,hi] of the index at indexPos into n disjoint
// partitions.
func (r *Relation) PartitionRange(indexPos int, lo, hi index.Tuple, n int) []index.Partition {
	r.mu.Lock()
	ix := r.indexes[indexPos]
	r.mu.Unlock()
	return ix.PartitionRange(lo, hi, n)
}

// Swap exchanges the entire tuple content of a and b, the seminaive
// new/delta exchange primitive.
func Swap(a, b *Relation) {
	if a == b {
		return
	}
	// Always lock in a fixed global order (by relation name) to
	// avoid deadlock between two concurrently-swapped relation pairs.
	first, second := a, b
	if a.name > b.name {
		first, second = b, a
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	a.indexes, b.indexes = b.indexes, a.indexes
	a.loaded, b.loaded = b.loaded, a.loaded
}

// MergeExtend unions src into dst. When dst is an Eqrel relation, its
// Insert closes the result under reflexivity/symmetry/transitivity; for
// other kinds it is a plain union.
func MergeExtend(dst, src *Relation) {
	if dst.kind != KindEqrel || src.kind != KindEqrel {
		// Generic union for non-Eqrel relations: used by subroutine
		// composition where the target simply accumulates tuples from a
		// stratum's output relation.
		src.Scan(func(t index.Tuple) bool {
			dst.Insert(t)
			return true
		})
		return
	}
	src.Scan(func(t index.Tuple) bool {
		dst.Insert(t)
		return true
	})
}

// closeEqrelLocked computes the reflexive/symmetric/transitive closure of
// the relation in place. Caller must hold r.mu.
func (r *Relation) closeEqrelLocked() {
	if r.arity != 2 {
		return
	}
	parent := map[domain.Domain]domain.Domain{}
	var find func(domain.Domain) domain.Domain
	find = func(x domain.Domain) domain.Domain {
		if p, ok := parent[x]; !ok || p == x {
			parent[x] = x
			return x
		}
		parent[x] = find(parent[x])
		return parent[x]
	}
	union := func(x, y domain.Domain) {
		rx, ry := find(x), find(y)
		if rx != ry {
			parent[rx] = ry
		}
	}
	r.indexes[0].Scan(func(t index.Tuple) bool {
		union(t[0], t[1])
		return true
	})
	groups := map[domain.Domain][]domain.Domain{}
	for x := range parent {
		root := find(x)
		groups[root] = append(groups[root], x)
	}
	for _, members := range groups {
		for _, a := range members {
			for _, b := range members {
				for _, ix := range r.indexes {
					ix.Insert(index.Tuple{a, b})
				}
			}
		}
	}
}
