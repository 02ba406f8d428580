// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"sync"

	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/shadow"
)

// execAggregate scans Relation (optionally restricted to an index range),
// applies Filter, and combines Target over the passing tuples with Func,
// then binds the 1-tuple result to TupleID and runs Nested when
// shouldRunNested holds.
//
// Min/Max/Sum/Mean interpret Target's bits as Signed; USum and FSum are the
// explicit unsigned/float-typed sum variants. Aggregate carries no operand
// Type of its own, so this is the one place the engine fixes a default
// interpretation rather than reading it off the node (documented in
// DESIGN.md).
func (e *Engine) execAggregate(sh *shadow.Node, ctxt *Context) bool {
	v := sh.RAM.(ram.Aggregate)
	if v.Parallel {
		return e.execParallelAggregate(sh, v, ctxt)
	}

	acc, _, _, _ := e.aggregateIdentity(v.Func)
	var meanSum float64
	var meanCount int64
	anyPassed := false

	candidate := func(t index.Tuple) bool {
		ctxt.bind(v.TupleID, t)
		if sh.Cond != nil && !e.evalCond(sh.Cond, ctxt) {
			return true
		}
		anyPassed = true
		acc, meanSum, meanCount = e.combineAggregate(v.Func, sh, ctxt, acc, meanSum, meanCount)
		return true
	}

	if v.IndexPos >= 0 && len(sh.Pattern) > 0 {
		lo, hi, _ := e.buildRangeBounds(sh.Relation, sh.Pattern, ctxt)
		view := e.ensureView(sh, ctxt)
		view.Range(lo, hi, candidate)
	} else {
		sh.Relation.Scan(candidate)
	}

	if v.Func == ram.AggMean {
		if meanCount == 0 {
			acc = domain.FromFloat(0)
		} else {
			acc = domain.FromFloat(meanSum / float64(meanCount))
		}
	}

	if !shouldRunNested(v.Func, anyPassed) {
		return true
	}
	ctxt.bind(v.TupleID, index.Tuple{acc})
	return e.exec(sh.Nested, ctxt)
}

// aggPartial is one worker's contribution to a Parallel aggregate, merged
// with its siblings once every partition has been scanned.
type aggPartial struct {
	acc       domain.Domain
	meanSum   float64
	meanCount int64
	anyPassed bool
}

func (e *Engine) execParallelAggregate(sh *shadow.Node, v ram.Aggregate, ctxt *Context) bool {
	n := e.numThreads * 20
	var parts []index.Partition
	if v.IndexPos >= 0 && len(sh.Pattern) > 0 {
		lo, hi, _ := e.buildRangeBounds(sh.Relation, sh.Pattern, ctxt)
		parts = sh.Relation.PartitionRange(v.IndexPos, lo, hi, n)
	} else {
		parts = sh.Relation.PartitionScan(n)
	}

	identity, _, _, _ := e.aggregateIdentity(v.Func)
	results := make([]aggPartial, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := ctxt.Clone()
			partial := aggPartial{acc: identity}
			p.Scan(func(t index.Tuple) bool {
				w.bind(v.TupleID, t)
				if sh.Cond != nil && !e.evalCond(sh.Cond, w) {
					return true
				}
				partial.anyPassed = true
				partial.acc, partial.meanSum, partial.meanCount = e.combineAggregate(v.Func, sh, w, partial.acc, partial.meanSum, partial.meanCount)
				return true
			})
			results[i] = partial
		}()
	}
	wg.Wait()

	acc := identity
	var meanSum float64
	var meanCount int64
	anyPassed := false
	for _, r := range results {
		if !r.anyPassed && !countsEvenEmpty(v.Func) {
			continue
		}
		acc = e.mergeAggregate(v.Func, sh, acc, r.acc)
		meanSum += r.meanSum
		meanCount += r.meanCount
		anyPassed = anyPassed || r.anyPassed
	}

	if v.Func == ram.AggMean {
		if meanCount == 0 {
			acc = domain.FromFloat(0)
		} else {
			acc = domain.FromFloat(meanSum / float64(meanCount))
		}
	}

	if !shouldRunNested(v.Func, anyPassed) {
		return true
	}
	ctxt.bind(v.TupleID, index.Tuple{acc})
	return e.exec(sh.Nested, ctxt)
}

// countsEvenEmpty reports whether a partition with no passing tuples still
// contributes its identity value to the merge (true for the aggregators
// shouldRunNested always runs).
func countsEvenEmpty(f ram.AggFunc) bool {
	switch f {
	case ram.AggCount, ram.AggSum, ram.AggUSum, ram.AggFSum, ram.AggUserDefined:
		return true
	default:
		return false
	}
}

func (e *Engine) aggregateIdentity(f ram.AggFunc) (acc domain.Domain, meanSum float64, meanCount int64, anyPassed bool) {
	switch f {
	case ram.AggMin:
		return maxSigned, 0, 0, false
	case ram.AggMax:
		return minSigned, 0, 0, false
	case ram.AggSum, ram.AggCount:
		return domain.FromSigned(0), 0, 0, false
	case ram.AggUSum:
		return domain.FromUnsigned(0), 0, 0, false
	case ram.AggFSum:
		return domain.FromFloat(0), 0, 0, false
	case ram.AggMean:
		return domain.FromFloat(0), 0, 0, false
	case ram.AggUserDefined:
		return domain.Nil, 0, 0, false
	default:
		diag.Global().Fatalf("engine: unknown aggregator %v", f)
		return domain.Nil, 0, 0, false
	}
}

func (e *Engine) combineAggregate(f ram.AggFunc, sh *shadow.Node, ctxt *Context, acc domain.Domain, meanSum float64, meanCount int64) (domain.Domain, float64, int64) {
	switch f {
	case ram.AggCount:
		return domain.FromSigned(acc.AsSigned() + 1), meanSum, meanCount
	case ram.AggMean:
		val := e.evalExpr(sh.Children[0], ctxt)
		return acc, meanSum + float64(val.AsSigned()), meanCount + 1
	}

	val := e.evalExpr(sh.Children[0], ctxt)
	switch f {
	case ram.AggMin:
		if val.AsSigned() < acc.AsSigned() {
			acc = val
		}
	case ram.AggMax:
		if val.AsSigned() > acc.AsSigned() {
			acc = val
		}
	case ram.AggSum:
		acc = domain.FromSigned(acc.AsSigned() + val.AsSigned())
	case ram.AggUSum:
		acc = domain.FromUnsigned(acc.AsUnsigned() + val.AsUnsigned())
	case ram.AggFSum:
		acc = domain.FromFloat(acc.AsFloat() + val.AsFloat())
	case ram.AggUserDefined:
		if sh.FFI != nil {
			acc = sh.FFI.Call(e.symbols, []domain.Domain{acc, val}, nil)
		}
	default:
		diag.Global().Fatalf("engine: unknown aggregator %v", f)
	}
	return acc, meanSum, meanCount
}

// mergeAggregate combines two partitions' partial accumulators; it is the
// associative half of the same aggregator combineAggregate applies between
// an accumulator and a candidate tuple's target value.
func (e *Engine) mergeAggregate(f ram.AggFunc, sh *shadow.Node, a, b domain.Domain) domain.Domain {
	switch f {
	case ram.AggMin:
		if b.AsSigned() < a.AsSigned() {
			return b
		}
		return a
	case ram.AggMax:
		if b.AsSigned() > a.AsSigned() {
			return b
		}
		return a
	case ram.AggSum, ram.AggCount:
		return domain.FromSigned(a.AsSigned() + b.AsSigned())
	case ram.AggUSum:
		return domain.FromUnsigned(a.AsUnsigned() + b.AsUnsigned())
	case ram.AggFSum:
		return domain.FromFloat(a.AsFloat() + b.AsFloat())
	case ram.AggMean:
		return a
	case ram.AggUserDefined:
		if sh.FFI != nil {
			return sh.FFI.Call(e.symbols, []domain.Domain{a, b}, nil)
		}
		return a
	default:
		return a
	}
}

// shouldRunNested reports whether a Query's aggregate should bind its
// result and run Nested: always for the additive aggregators (an empty
// relation contributes its identity), otherwise only when some candidate
// passed the filter.
func shouldRunNested(f ram.AggFunc, anyPassed bool) bool {
	if countsEvenEmpty(f) {
		return true
	}
	return anyPassed
}
