// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"math"

	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/relation"
	"github.com/ramengine/ramengine/shadow"
)

var (
	minSigned = domain.FromSigned(math.MinInt64)
	maxSigned = domain.FromSigned(math.MaxInt64)
)

// evalExpr evaluates a shadow node known to wrap a ram.Expr, returning the
// Domain it yields.
func (e *Engine) evalExpr(sh *shadow.Node, ctxt *Context) domain.Domain {
	switch v := sh.RAM.(type) {
	case ram.NumericConstant:
		return v.Value
	case ram.StringConstant:
		return e.symbols.Encode(v.Value)
	case ram.Variable:
		return ctxt.vars[v.Name]
	case ram.TupleElement:
		t := ctxt.tuple(v.TupleID)
		if v.Col < 0 || v.Col >= len(t) {
			diag.Global().Fatalf("engine: tuple element column %d out of range for tuple-id %d", v.Col, v.TupleID)
			return domain.Nil
		}
		return t[v.Col]
	case ram.AutoIncrement:
		return e.nextAutoIncrement()
	case ram.IntrinsicOperator:
		args := e.evalExprs(sh.Children, ctxt)
		return evalIntrinsic(v.Op, v.Type, args, e.symbols)
	case ram.UserDefinedOperator:
		if sh.FFI == nil {
			diag.Global().Fatalf("engine: unresolved user-defined operator %q", v.Name)
			return domain.Nil
		}
		args := e.evalExprs(sh.Children, ctxt)
		return sh.FFI.Call(e.symbols, args, nil)
	case ram.PackRecord:
		args := e.evalExprs(sh.Children, ctxt)
		return e.records.Pack(args)
	case ram.SubroutineArgument:
		if v.Index < 0 || v.Index >= len(ctxt.args) {
			diag.Global().Fatalf("engine: subroutine argument %d out of range", v.Index)
			return domain.Nil
		}
		return ctxt.args[v.Index]
	default:
		diag.Global().Fatalf("engine: unreachable expression node %T", sh.RAM)
		return domain.Nil
	}
}

func (e *Engine) evalExprs(nodes []*shadow.Node, ctxt *Context) []domain.Domain {
	if nodes == nil {
		return nil
	}
	out := make([]domain.Domain, len(nodes))
	for i, n := range nodes {
		out[i] = e.evalExpr(n, ctxt)
	}
	return out
}

// evalCond evaluates a shadow node known to wrap a ram.Cond, returning the
// boolean it yields.
func (e *Engine) evalCond(sh *shadow.Node, ctxt *Context) bool {
	if sh == nil {
		return true
	}
	switch v := sh.RAM.(type) {
	case ram.True:
		return true
	case ram.False:
		return false
	case ram.Conjunction:
		for _, c := range sh.Children {
			if !e.evalCond(c, ctxt) {
				return false
			}
		}
		return true
	case ram.Negation:
		return !e.evalCond(sh.Cond, ctxt)
	case ram.Constraint:
		lhs := e.evalExpr(sh.Children[0], ctxt)
		rhs := e.evalExpr(sh.Children[1], ctxt)
		return evalConstraint(v.Op, v.Type, lhs, rhs, e.symbols)
	case ram.EmptinessCheck:
		return sh.Relation.Empty()
	case ram.ExistenceCheck:
		lo, hi, total := e.buildRangeBounds(sh.Relation, sh.Pattern, ctxt)
		view := e.ensureView(sh, ctxt)
		if total {
			return view.Contains(lo)
		}
		return view.ContainsRange(lo, hi)
	case ram.ProvenanceExistenceCheck:
		lo, hi := e.buildProvenanceBounds(sh.Relation, sh.Pattern, ctxt)
		view := e.ensureView(sh, ctxt)
		var level domain.Domain
		found := false
		view.Range(lo, hi, func(t index.Tuple) bool {
			level = t[len(t)-1]
			found = true
			return false
		})
		if !found {
			return false
		}
		threshold := e.evalExpr(sh.Cond, ctxt)
		return level.AsSigned() <= threshold.AsSigned()
	default:
		diag.Global().Fatalf("engine: unreachable condition node %T", sh.RAM)
		return false
	}
}

// buildRangeBounds constructs the low/high search tuples for an
// ExistenceCheck or Scan/Aggregate index lookup: fixed columns (a non-nil
// pattern entry) collapse lo and hi to the same evaluated value; wildcard
// columns span the full Domain range. total reports whether every column
// of the relation's total arity was fixed (so a point lookup suffices).
func (e *Engine) buildRangeBounds(rel *relation.Relation, pattern []*shadow.Node, ctxt *Context) (lo, hi index.Tuple, total bool) {
	n := rel.TotalArity()
	lo = make(index.Tuple, n)
	hi = make(index.Tuple, n)
	total = true
	for i := 0; i < n; i++ {
		if i < len(pattern) && pattern[i] != nil {
			val := e.evalExpr(pattern[i], ctxt)
			lo[i], hi[i] = val, val
			continue
		}
		lo[i] = domain.Domain(0)
		hi[i] = domain.Domain(^uint64(0))
		total = false
	}
	return lo, hi, total
}

// buildProvenanceBounds is buildRangeBounds restricted to a Provenance
// relation's data columns, with the trailing (rule, level) aux columns
// forcibly spanning the index's full unsigned range so the caller's
// threshold comparison runs against every derivation regardless of which
// rule produced it. The index orders cells by the same unsigned Domain
// comparator buildRangeBounds's wildcard columns use (index.Order.less),
// not a signed one, so the aux span must match that comparator rather
// than the Signed domain's min/max sentinels.
func (e *Engine) buildProvenanceBounds(rel *relation.Relation, pattern []*shadow.Node, ctxt *Context) (lo, hi index.Tuple) {
	total := rel.TotalArity()
	arity := rel.Arity()
	lo = make(index.Tuple, total)
	hi = make(index.Tuple, total)
	for i := 0; i < arity; i++ {
		if i < len(pattern) && pattern[i] != nil {
			val := e.evalExpr(pattern[i], ctxt)
			lo[i], hi[i] = val, val
			continue
		}
		lo[i] = domain.Domain(0)
		hi[i] = domain.Domain(^uint64(0))
	}
	for i := arity; i < total; i++ {
		lo[i] = domain.Domain(0)
		hi[i] = domain.Domain(^uint64(0))
	}
	return lo, hi
}

// ensureView returns the view sh.ViewSlot names, creating and caching it in
// ctxt on first use. Query entry pre-creates every node a ViewContext
// names; this lazy path covers any check node reached outside that
// pre-materialization (e.g. a condition nested two Query levels deep).
func (e *Engine) ensureView(sh *shadow.Node, ctxt *Context) *index.View {
	if sh.ViewSlot < 0 {
		return nil
	}
	if v := ctxt.view(sh.ViewSlot); v != nil {
		return v
	}
	v := sh.Relation.CreateView(indexPosOf(sh.RAM))
	ctxt.setView(sh.ViewSlot, v)
	return v
}

// indexPosOf extracts the index position a check node searches through;
// EmptinessCheck needs no particular order and is given the primary index.
func indexPosOf(n ram.Node) int {
	switch v := n.(type) {
	case ram.ExistenceCheck:
		return v.IndexPos
	case ram.ProvenanceExistenceCheck:
		return v.IndexPos
	default:
		return 0
	}
}
