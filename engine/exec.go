// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
	"github.com/ramengine/ramengine/profile"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/relation"
	"github.com/ramengine/ramengine/shadow"
)

// exec dispatches a shadow node that is a tuple-yielding loop, an action,
// or a statement — every RAM node kind besides Expr and Cond, which
// evalExpr/evalCond handle. It returns false exactly when the evaluation
// should be treated as a stop signal by its caller: a scanning tuple loop
// (Scan, IndexScan, IfExists, IndexIfExists, RangeScan) absorbs that signal
// from its own nested body (it always reports true once its scan ends,
// early or not), while UnpackRecord and Aggregate, which run their nested
// body at most once, return that body's result; a Sequence propagates it, except when the
// failing child was itself a Filter, whose false means only "skip the rest
// of this sequence for this tuple", not "abort the enclosing loop".
func (e *Engine) exec(sh *shadow.Node, ctxt *Context) bool {
	switch v := sh.RAM.(type) {

	// ---- tuple-yielding loops ----

	case ram.Scan:
		if v.Parallel {
			e.runPartitions(sh.Relation.PartitionScan(e.numThreads*chunkFactor), ctxt, func(w *Context, p index.Partition) {
				p.Scan(func(t index.Tuple) bool {
					w.bind(v.TupleID, t)
					return e.exec(sh.Nested, w)
				})
			})
			return true
		}
		sh.Relation.Scan(func(t index.Tuple) bool {
			ctxt.bind(v.TupleID, t)
			return e.exec(sh.Nested, ctxt)
		})
		return true

	case ram.IndexScan:
		lo, hi, _ := e.buildRangeBounds(sh.Relation, sh.Pattern, ctxt)
		if v.Parallel {
			e.runPartitions(sh.Relation.PartitionRange(v.IndexPos, lo, hi, e.numThreads*chunkFactor), ctxt, func(w *Context, p index.Partition) {
				p.Scan(func(t index.Tuple) bool {
					w.bind(v.TupleID, t)
					return e.exec(sh.Nested, w)
				})
			})
			return true
		}
		view := sh.Relation.CreateView(v.IndexPos)
		view.Range(lo, hi, func(t index.Tuple) bool {
			ctxt.bind(v.TupleID, t)
			return e.exec(sh.Nested, ctxt)
		})
		return true

	case ram.IfExists:
		if v.Parallel {
			e.runPartitionsUntilFound(sh.Relation.PartitionScan(e.numThreads*chunkFactor), ctxt,
				func(w *Context, t index.Tuple) bool {
					w.bind(v.TupleID, t)
					return e.evalCond(sh.Cond, w)
				},
				func(w *Context, t index.Tuple) { e.exec(sh.Nested, w) })
			return true
		}
		matched := false
		sh.Relation.Scan(func(t index.Tuple) bool {
			ctxt.bind(v.TupleID, t)
			if e.evalCond(sh.Cond, ctxt) {
				matched = true
				return false
			}
			return true
		})
		if matched {
			e.exec(sh.Nested, ctxt)
		}
		return true

	case ram.IndexIfExists:
		lo, hi, _ := e.buildRangeBounds(sh.Relation, sh.Pattern, ctxt)
		if v.Parallel {
			e.runPartitionsUntilFound(sh.Relation.PartitionRange(v.IndexPos, lo, hi, e.numThreads*chunkFactor), ctxt,
				func(w *Context, t index.Tuple) bool {
					w.bind(v.TupleID, t)
					return e.evalCond(sh.Cond, w)
				},
				func(w *Context, t index.Tuple) { e.exec(sh.Nested, w) })
			return true
		}
		view := sh.Relation.CreateView(v.IndexPos)
		matched := false
		view.Range(lo, hi, func(t index.Tuple) bool {
			ctxt.bind(v.TupleID, t)
			if e.evalCond(sh.Cond, ctxt) {
				matched = true
				return false
			}
			return true
		})
		if matched {
			e.exec(sh.Nested, ctxt)
		}
		return true

	case ram.UnpackRecord:
		handle := e.evalExpr(sh.Children[0], ctxt)
		if handle == domain.Nil {
			return true
		}
		tuple := index.Tuple(e.records.Unpack(handle, v.Arity))
		ctxt.bind(v.TupleID, tuple)
		return e.exec(sh.Nested, ctxt)

	case ram.RangeScan:
		e.execRangeScan(sh, v, ctxt)
		return true

	case ram.Aggregate:
		return e.execAggregate(sh, ctxt)

	// ---- actions ----

	case ram.Insert:
		tuple := index.Tuple(e.evalExprs(sh.Children, ctxt))
		sh.Relation.Insert(tuple)
		if sh.FrequencyKey != "" {
			e.bumpFrequency(sh.FrequencyKey)
		}
		return true

	case ram.GuardedInsert:
		if e.evalCond(sh.Cond, ctxt) {
			tuple := index.Tuple(e.evalExprs(sh.Children, ctxt))
			sh.Relation.Insert(tuple)
		}
		return true

	case ram.Erase:
		tuple := index.Tuple(e.evalExprs(sh.Children, ctxt))
		sh.Relation.Erase(tuple)
		return true

	case ram.SubroutineReturn:
		ctxt.scratch = e.evalExprs(sh.Children, ctxt)
		return true

	case ram.Filter:
		if sh.FrequencyKey != "" {
			e.bumpFrequency(sh.FrequencyKey)
		}
		return e.evalCond(sh.Cond, ctxt)

	case ram.Break:
		return false

	case ram.Assign:
		ctxt.vars[v.Name] = e.evalExpr(sh.Children[0], ctxt)
		return true

	// ---- statements and control ----

	case ram.Sequence:
		return e.execSequence(sh, ctxt)
	case ram.Parallel:
		return e.execSequence(sh, ctxt)

	case ram.Loop:
		saved := e.iteration
		e.iteration = 0
		for e.exec(sh.Nested, ctxt) {
			e.iteration++
		}
		e.iteration = saved
		return true

	case ram.Exit:
		return !e.evalCond(sh.Cond, ctxt)

	case ram.Query:
		return e.execQuery(sh, ctxt)

	case ram.Call:
		args := e.evalExprs(sh.Children, ctxt)
		ret, err := e.ExecuteSubroutine(v.Subroutine, args)
		if err != nil {
			diag.Global().Fatalf("engine: %v", err)
			return true
		}
		for i, name := range v.Ret {
			if i < len(ret) {
				ctxt.vars[name] = ret[i]
			}
		}
		return true

	case ram.Clear:
		sh.Relation.Clear()
		return true

	case ram.Swap:
		relation.Swap(e.resolveRelation(v.A), e.resolveRelation(v.B))
		return true

	case ram.MergeExtend:
		relation.MergeExtend(e.resolveRelation(v.Dst), e.resolveRelation(v.Src))
		return true

	case ram.IO:
		e.execIO(sh, v)
		return true

	case ram.LogSize:
		e.profile.Histogram(profile.Key(profile.ScopeRelationReads, v.Relation)).Update(int64(sh.Relation.Size()))
		return true

	case ram.LogTimer:
		t := e.profile.Timer(profile.Key(profile.ScopeTime, v.Message))
		t.Start()
		ok := e.exec(sh.Nested, ctxt)
		t.Stop()
		return ok

	case ram.LogRelationTimer:
		t := e.profile.Timer(profile.Key(profile.ScopeTime, v.Message))
		t.Start()
		ok := e.exec(sh.Nested, ctxt)
		t.Stop()
		e.profile.Histogram(profile.Key(profile.ScopeRelationReads, v.Relation)).Update(int64(sh.Relation.Size()))
		return ok

	case ram.DebugInfo:
		diag.Global().WithField("rule", v.Message).Debugf("executing rule")
		return e.exec(sh.Nested, ctxt)

	case ram.EstimateJoinSize:
		scope := profile.ScopeNonRecursiveEstimateJoin
		if v.Recursive {
			scope = profile.ScopeRecursiveEstimateJoin
		}
		e.profile.Histogram(profile.Key(scope, v.Relation)).Update(int64(sh.Relation.Size()))
		return true

	default:
		diag.Global().Fatalf("engine: unreachable statement node %T", sh.RAM)
		return false
	}
}

// execSequence runs Sequence/Parallel's children in declaration order,
// stopping on the first false. A false returned by a Filter child is
// absorbed into true: Filter only ever means "skip the remaining actions
// of this sequence for the current tuple", never "abandon the enclosing
// loop" (see the package doc comment on exec).
func (e *Engine) execSequence(sh *shadow.Node, ctxt *Context) bool {
	for _, c := range sh.Children {
		if e.exec(c, ctxt) {
			continue
		}
		if _, isFilter := c.RAM.(ram.Filter); isFilter {
			return true
		}
		return false
	}
	return true
}

func (e *Engine) execRangeScan(sh *shadow.Node, v ram.RangeScan, ctxt *Context) {
	lo := e.evalExpr(sh.Children[0], ctxt)
	hi := e.evalExpr(sh.Children[1], ctxt)
	step := e.evalExpr(sh.Children[2], ctxt)

	switch v.Type {
	case domain.Unsigned:
		s := step.AsUnsigned()
		if s == 0 {
			return
		}
		for x := lo.AsUnsigned(); x < hi.AsUnsigned(); x += s {
			ctxt.bind(v.TupleID, index.Tuple{domain.FromUnsigned(x)})
			if !e.exec(sh.Nested, ctxt) {
				return
			}
		}
	default:
		s := step.AsSigned()
		if s == 0 {
			return
		}
		if s > 0 {
			for x := lo.AsSigned(); x < hi.AsSigned(); x += s {
				ctxt.bind(v.TupleID, index.Tuple{domain.FromSigned(x)})
				if !e.exec(sh.Nested, ctxt) {
					return
				}
			}
		} else {
			for x := lo.AsSigned(); x > hi.AsSigned(); x += s {
				ctxt.bind(v.TupleID, index.Tuple{domain.FromSigned(x)})
				if !e.exec(sh.Nested, ctxt) {
					return
				}
			}
		}
	}
}

// execQuery runs a Query's view-free outer filter, then (if still live)
// its view-needing outer filter, materializing each filter node's own
// view just before evaluating it; a non-parallel nested body has its
// check nodes' views pre-created once here rather than lazily inside the
// loop.
func (e *Engine) execQuery(sh *shadow.Node, ctxt *Context) bool {
	vc := sh.ViewContext
	for _, f := range vc.FreeOuterFilter {
		if !e.evalCond(f, ctxt) {
			return true
		}
	}
	for _, f := range vc.ViewedOuterFilter {
		e.ensureView(f, ctxt)
		if !e.evalCond(f, ctxt) {
			return true
		}
	}
	if !vc.NestedParallel {
		for _, n := range vc.NestedViewNodes {
			e.ensureView(n, ctxt)
		}
	}
	return e.exec(sh.Nested, ctxt)
}

func (e *Engine) execIO(sh *shadow.Node, v ram.IO) {
	switch v.Operation {
	case ram.IOInput:
		r, err := e.io.Reader(v.Directives, sh.Relation.Arity(), sh.Relation.AuxArity())
		if err != nil {
			diag.Global().Fatalf("engine: io input for %q: %v", v.Relation, err)
			return
		}
		tuples, err := r.Read()
		if err != nil {
			diag.Global().Fatalf("engine: io input for %q: %v", v.Relation, err)
			return
		}
		for _, t := range tuples {
			sh.Relation.Insert(t)
		}
	case ram.IOOutput, ram.IOPrintSize:
		w, err := e.io.Writer(v.Directives, sh.Relation.Arity(), sh.Relation.AuxArity())
		if err != nil {
			diag.Global().Fatalf("engine: io output for %q: %v", v.Relation, err)
			return
		}
		var tuples []index.Tuple
		sh.Relation.Scan(func(t index.Tuple) bool {
			tuples = append(tuples, t)
			return true
		})
		if err := w.Write(tuples); err != nil {
			diag.Global().Fatalf("engine: io output for %q: %v", v.Relation, err)
		}
	default:
		diag.Global().Fatalf("engine: unknown IO operation %q for %q", v.Operation, v.Relation)
	}
}
