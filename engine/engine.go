// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package engine implements the interpreter: it owns every Relation a RAM
// program declares, the shadow trees lowered from that program, and the
// single recursive evaluator that drives them to fixpoint.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/functor"
	"github.com/ramengine/ramengine/index"
	"github.com/ramengine/ramengine/ioregistry"
	"github.com/ramengine/ramengine/profile"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/record"
	"github.com/ramengine/ramengine/relation"
	"github.com/ramengine/ramengine/shadow"
	"github.com/ramengine/ramengine/symbol"
)

// Engine owns every Relation a RAM program declares, the shadow trees
// lowered from main and each subroutine, and the interning/dispatch
// services the evaluator consults.
type Engine struct {
	relations   map[string]*relation.Relation
	relationIDs map[string]int
	byID        []*relation.Relation

	symbols *symbol.Table
	records *record.Table

	functors functor.Dispatcher
	io       *ioregistry.Registry
	profile  profile.Sink

	mainShadow *shadow.Node
	subShadows map[string]*shadow.Node

	autoIncrement uint64
	iteration     int

	freqMu sync.Mutex
	freq   map[string][]uint64

	numThreads int

	externals map[string]relation.External
}

// Options configures a new Engine.
type Options struct {
	Functors functor.Dispatcher
	IO       *ioregistry.Registry
	Profile  profile.Sink
	// Symbols lets a caller share one symbol table between the Engine and
	// an IO registry it constructed ahead of time (ioregistry.New needs a
	// domain.SymbolCodec before the Engine exists to hand it one). A nil
	// Symbols makes the Engine allocate its own, private table.
	Symbols    *symbol.Table
	NumThreads int
	// Externals supplies out-of-process sources for any RelationDecl whose
	// Kind is KindExternal, keyed by relation name.
	Externals map[string]relation.External
}

// New constructs an Engine for program: it creates every declared
// Relation, then lowers main and each subroutine into a shadow tree.
func New(program *ram.Program, opts Options) *Engine {
	if opts.NumThreads < 1 {
		opts.NumThreads = 1
	}
	if opts.Profile == nil {
		opts.Profile = profile.NoOp()
	}
	if opts.Symbols == nil {
		opts.Symbols = symbol.New()
	}

	e := &Engine{
		relations:   map[string]*relation.Relation{},
		relationIDs: map[string]int{},
		symbols:     opts.Symbols,
		records:     record.New(),
		functors:    opts.Functors,
		io:          opts.IO,
		profile:     opts.Profile,
		subShadows:  map[string]*shadow.Node{},
		freq:        map[string][]uint64{},
		numThreads:  opts.NumThreads,
		externals:   opts.Externals,
	}

	for id, decl := range program.Relations {
		e.createRelation(id, decl)
	}

	gen := shadow.NewGenerator(e.resolveRelation, e.resolveFunctor)
	e.mainShadow, e.subShadows = gen.Generate(program)

	return e
}

func (e *Engine) createRelation(id int, decl ram.RelationDecl) {
	orders := make([]index.Order, len(decl.Orders))
	for i, perm := range decl.Orders {
		orders[i] = index.Order(perm)
	}

	var r *relation.Relation
	if decl.Kind == ram.KindExternal {
		src, ok := e.externals[decl.Name]
		if !ok {
			diag.Global().Fatalf("engine: relation %q declared external but no source was supplied", decl.Name)
		}
		r = relation.NewExternal(decl.Name, decl.Arity, decl.AuxArity, src)
	} else {
		r = relation.New(decl.Name, decl.Arity, decl.AuxArity, toRelationKind(decl.Kind), orders)
	}
	if decl.Shadow {
		r.MarkShadow()
	}

	e.relations[decl.Name] = r
	e.relationIDs[decl.Name] = id
	if id >= len(e.byID) {
		grown := make([]*relation.Relation, id+1)
		copy(grown, e.byID)
		e.byID = grown
	}
	e.byID[id] = r
}

func toRelationKind(k ram.RelationKind) relation.Kind {
	switch k {
	case ram.KindBTree:
		return relation.KindBTree
	case ram.KindBTreeDelete:
		return relation.KindBTreeDelete
	case ram.KindEqrel:
		return relation.KindEqrel
	case ram.KindProvenance:
		return relation.KindProvenance
	case ram.KindExternal:
		return relation.KindExternal
	default:
		diag.Global().Fatalf("engine: unknown relation kind %v", k)
		return relation.KindBTree
	}
}

func (e *Engine) resolveRelation(name string) *relation.Relation {
	r, ok := e.relations[name]
	if !ok {
		diag.Global().Fatalf("engine: reference to undeclared relation %q", name)
	}
	return r
}

func (e *Engine) resolveFunctor(name string, stateful bool, argc int) *functor.Descriptor {
	if e.functors == nil {
		diag.Global().Fatalf("engine: user-defined operator %q but no functor dispatcher configured", name)
	}
	return e.functors.Resolve(name, stateful, argc)
}

// GetRelationHandle returns the Relation registered for id, for inspection.
func (e *Engine) GetRelationHandle(id int) *relation.Relation {
	if id < 0 || id >= len(e.byID) {
		return nil
	}
	return e.byID[id]
}

// GetRelIDMap returns the relation-name to id map.
func (e *Engine) GetRelIDMap() map[string]int {
	out := make(map[string]int, len(e.relationIDs))
	for k, v := range e.relationIDs {
		out[k] = v
	}
	return out
}

// Relation looks up a declared relation by name, for tests and IO glue.
func (e *Engine) Relation(name string) *relation.Relation {
	return e.relations[name]
}

// Symbols returns the engine's symbol table.
func (e *Engine) Symbols() *symbol.Table { return e.symbols }

// Records returns the engine's record table.
func (e *Engine) Records() *record.Table { return e.records }

// ExecuteMain runs the main statement to completion.
func (e *Engine) ExecuteMain() {
	if e.mainShadow == nil {
		return
	}
	ctxt := NewContext(countViewSlots(e.mainShadow), nil)
	e.exec(e.mainShadow, ctxt)
}

// ExecuteSubroutine runs a named stratum with the given arguments,
// returning the values its SubroutineReturn bound.
func (e *Engine) ExecuteSubroutine(name string, args []domain.Domain) ([]domain.Domain, error) {
	sh, ok := e.subShadows[name]
	if !ok {
		return nil, fmt.Errorf("engine: unknown subroutine %q", name)
	}
	ctxt := NewContext(countViewSlots(sh), args)
	e.exec(sh, ctxt)
	return ctxt.scratch, nil
}

func countViewSlots(sh *shadow.Node) int {
	max := -1
	var walk func(n *shadow.Node)
	walk = func(n *shadow.Node) {
		if n == nil {
			return
		}
		if n.ViewSlot > max {
			max = n.ViewSlot
		}
		walk(n.Nested)
		walk(n.Cond)
		for _, c := range n.Children {
			walk(c)
		}
		for _, p := range n.Pattern {
			walk(p)
		}
		if n.ViewContext != nil {
			for _, f := range n.ViewContext.FreeOuterFilter {
				walk(f)
			}
			for _, f := range n.ViewContext.ViewedOuterFilter {
				walk(f)
			}
			for _, v := range n.ViewContext.NestedViewNodes {
				walk(v)
			}
		}
	}
	walk(sh)
	return max + 1
}

// nextAutoIncrement returns the next value of the engine-wide monotonic
// counter AutoIncrement expressions read.
func (e *Engine) nextAutoIncrement() domain.Domain {
	return domain.FromUnsigned(atomic.AddUint64(&e.autoIncrement, 1) - 1)
}

// bumpFrequency records one invocation of the rule identified by key at
// the current iteration, extending the per-iteration bucket slice under a
// short critical section only when a new iteration is seen.
func (e *Engine) bumpFrequency(key string) {
	e.freqMu.Lock()
	buckets := e.freq[key]
	for len(buckets) <= e.iteration {
		buckets = append(buckets, 0)
	}
	buckets[e.iteration]++
	e.freq[key] = buckets
	e.freqMu.Unlock()
}
