// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package shadow lowers a ram.Program into a tree of executable shadow
// nodes, mirroring the RAM tree but pre-decorated with resolved relation
// pointers, view slot indices, prepared search-bound templates, and FFI
// call descriptors for user-defined operators. Keeping the shadow tree
// distinct from the RAM tree (rather than decorating RAM nodes in place)
// keeps the RAM tree immutable and reusable; shadow nodes reference RAM
// nodes by borrow, not ownership.
package shadow

import (
	"regexp"

	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/functor"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/relation"
)

// Node is the executable counterpart of a ram.Node. A single generic
// struct carries every kind-specific resolved field the Generator might
// need to fill in; the underlying RAM node's concrete Go type is the kind
// tag the engine type-switches on.
type Node struct {
	RAM ram.Node

	// Relation is the resolved target for nodes that name one relation
	// (Scan, Insert, Clear, ExistenceCheck, ...).
	Relation *relation.Relation

	// ViewSlot is the pre-sized Context view-vector slot this node writes
	// into at Query-entry; -1 when the node needs no view.
	ViewSlot int

	// Pattern is the prepared search-bound template (superInfo.first /
	// superInfo.second in the reference corpus): resolved lowered
	// expressions that build the low/high search tuples. Built once at
	// generation time so the hot path never re-derives it.
	Pattern []*Node

	// Nested is the lowered body for tuple loops, Loop, Query, LogTimer,
	// LogRelationTimer, and DebugInfo.
	Nested *Node

	// Children lowers the list-valued RAM fields: Conjunction.Args,
	// Sequence.Stmts, Parallel.Stmts, IntrinsicOperator.Args,
	// UserDefinedOperator.Args, PackRecord.Args, Insert.Args, Erase.Args,
	// SubroutineReturn.Args.
	Children []*Node

	// Guard/Filter/Cond is the lowered condition operand carried by
	// GuardedInsert, Filter, IfExists family, Negation, and Exit.
	Cond *Node

	// CompiledPattern is the precompiled regex for a constant MATCH /
	// NOT_MATCH pattern; nil when the pattern must be re-evaluated (and
	// re-cached by the domain package) per iteration.
	CompiledPattern *regexp.Regexp

	// FFI is the resolved call descriptor for a UserDefinedOperator.
	FFI *functor.Descriptor

	// View is set once, at Query entry, when ViewSlot >= 0; it is nil
	// before the enclosing Query has run its view-creation step.
	View interface{}

	// ViewContext is populated only on Query nodes.
	ViewContext *ViewContext

	// FrequencyKey is the precomputed profile-scope string this node's
	// enclosing rule is counted under.
	FrequencyKey string
}

// ViewContext partitions a Query's outer filter into the pieces that need a
// view and the pieces that don't, so a short-circuiting outer filter never
// pays for view construction it doesn't need.
type ViewContext struct {
	// FreeOuterFilter are outer-filter conditions that need no view.
	FreeOuterFilter []*Node
	// ViewedOuterFilter are outer-filter conditions that do need a view;
	// each node's own ViewSlot field names the Context slot it creates.
	ViewedOuterFilter []*Node
	// NestedViewNodes are the view-slot nodes (ExistenceCheck,
	// ProvenanceExistenceCheck, EmptinessCheck, Aggregate) reachable inside
	// the nested loop body, materialized once the outer filter is confirmed
	// live.
	NestedViewNodes []*Node
	// NestedParallel records whether the nested loop fans out across
	// workers, in which case nested views are created per-worker instead
	// of once in the parent Context.
	NestedParallel bool
}

// RelationResolver resolves a relation name to its constructed Relation;
// the Generator never constructs relations itself (createRelation is an
// Engine responsibility run once at program start).
type RelationResolver func(name string) *relation.Relation

// FunctorResolver resolves a UserDefinedOperator's call descriptor ahead of
// time so the hot path never pays dispatch-resolution cost per call.
type FunctorResolver func(name string, stateful bool, argc int) *functor.Descriptor

// Generator lowers RAM nodes to shadow nodes.
type Generator struct {
	relations ramRelationResolver
	functors  FunctorResolver
	viewSlots int
	indexPos  map[ram.Node]int
}

type ramRelationResolver = RelationResolver

// NewGenerator constructs a Generator that resolves relation names via
// relations and functor names via functors.
func NewGenerator(relations RelationResolver, functors FunctorResolver) *Generator {
	return &Generator{relations: relations, functors: functors}
}

// Generate lowers an entire ram.Program: the main statement and every
// named subroutine.
func (g *Generator) Generate(p *ram.Program) (main *Node, subroutines map[string]*Node) {
	main = g.lower(p.Main)
	subroutines = make(map[string]*Node, len(p.Subroutines))
	for name, node := range p.Subroutines {
		subroutines[name] = g.lower(node)
	}
	return main, subroutines
}

// lower dispatches on the RAM node's concrete type, populating the
// kind-specific resolved fields the engine needs.
func (g *Generator) lower(n ram.Node) *Node {
	if n == nil {
		return nil
	}
	sh := &Node{RAM: n, ViewSlot: -1}

	switch v := n.(type) {
	case ram.IntrinsicOperator:
		sh.Children = g.lowerExprs(v.Args)
		if v.Op == "match" || v.Op == "not_match" {
			if len(v.Args) == 2 {
				if sc, ok := v.Args[1].(ram.StringConstant); ok {
					sh.CompiledPattern, _ = domain.CompilePattern(sc.Value)
				}
			}
		}
	case ram.UserDefinedOperator:
		sh.Children = g.lowerExprs(v.Args)
		if g.functors != nil {
			sh.FFI = g.functors(v.Name, v.Stateful, len(v.Args))
		}
	case ram.PackRecord:
		sh.Children = g.lowerExprs(v.Args)

	case ram.Conjunction:
		for _, c := range v.Args {
			sh.Children = append(sh.Children, g.lower(c))
		}
	case ram.Negation:
		sh.Cond = g.lower(v.Arg)
	case ram.Constraint:
		sh.Children = []*Node{g.lower(v.LHS), g.lower(v.RHS)}
	case ram.EmptinessCheck:
		sh.Relation = g.resolve(v.Relation)
		sh.ViewSlot = g.nextViewSlot()
	case ram.ExistenceCheck:
		sh.Relation = g.resolve(v.Relation)
		sh.ViewSlot = g.nextViewSlot()
		sh.Pattern = g.lowerExprs(v.Args)
	case ram.ProvenanceExistenceCheck:
		sh.Relation = g.resolve(v.Relation)
		sh.ViewSlot = g.nextViewSlot()
		sh.Pattern = g.lowerExprs(v.Args)
		sh.Cond = g.lower(v.LevelThreshold)

	case ram.Scan:
		sh.Relation = g.resolve(v.Relation)
		sh.Nested = g.lower(v.Nested)
	case ram.IndexScan:
		sh.Relation = g.resolve(v.Relation)
		sh.Pattern = g.lowerExprs(v.Pattern)
		sh.Nested = g.lower(v.Nested)
	case ram.IfExists:
		sh.Relation = g.resolve(v.Relation)
		sh.Cond = g.lower(v.Cond)
		sh.Nested = g.lower(v.Nested)
	case ram.IndexIfExists:
		sh.Relation = g.resolve(v.Relation)
		sh.Pattern = g.lowerExprs(v.Pattern)
		sh.Cond = g.lower(v.Cond)
		sh.Nested = g.lower(v.Nested)
	case ram.UnpackRecord:
		sh.Children = []*Node{g.lower(v.Handle)}
		sh.Nested = g.lower(v.Nested)
	case ram.RangeScan:
		sh.Children = []*Node{g.lower(v.Lo), g.lower(v.Hi), g.lower(v.Step)}
		sh.Nested = g.lower(v.Nested)
	case ram.Aggregate:
		sh.Relation = g.resolve(v.Relation)
		sh.ViewSlot = g.nextViewSlot()
		sh.Pattern = g.lowerExprs(v.Pattern)
		sh.Cond = g.lower(v.Filter)
		sh.Children = []*Node{g.lower(v.Target)}
		sh.Nested = g.lower(v.Nested)
		if v.Func == ram.AggUserDefined && g.functors != nil {
			sh.FFI = g.functors(v.UserFunc, true, 2)
		}

	case ram.Insert:
		sh.Relation = g.resolve(v.Relation)
		sh.Children = g.lowerExprs(v.Args)
	case ram.GuardedInsert:
		sh.Relation = g.resolve(v.Relation)
		sh.Children = g.lowerExprs(v.Args)
		sh.Cond = g.lower(v.Guard)
	case ram.Erase:
		sh.Relation = g.resolve(v.Relation)
		sh.Children = g.lowerExprs(v.Args)
	case ram.SubroutineReturn:
		sh.Children = g.lowerExprs(v.Args)
	case ram.Filter:
		sh.Cond = g.lower(v.Cond)
	case ram.Assign:
		sh.Children = []*Node{g.lower(v.Value)}

	case ram.Sequence:
		for _, s := range v.Stmts {
			sh.Children = append(sh.Children, g.lower(s))
		}
	case ram.Parallel:
		for _, s := range v.Stmts {
			sh.Children = append(sh.Children, g.lower(s))
		}
	case ram.Loop:
		sh.Nested = g.lower(v.Body)
	case ram.Exit:
		sh.Cond = g.lower(v.Cond)
	case ram.Query:
		sh.Nested = g.lower(v.Nested)
		sh.ViewContext = g.buildViewContext(v.OuterFilter, sh)
	case ram.Call:
		sh.Children = g.lowerExprs(v.Args)
	case ram.Clear:
		sh.Relation = g.resolve(v.Relation)
	case ram.Swap:
		// Resolved lazily by the engine (two names, no single Relation
		// field fits); see engine.exec.
	case ram.MergeExtend:
		// Same as Swap.
	case ram.IO:
		sh.Relation = g.resolve(v.Relation)
	case ram.LogSize:
		sh.Relation = g.resolve(v.Relation)
	case ram.LogTimer:
		sh.Nested = g.lower(v.Body)
	case ram.LogRelationTimer:
		sh.Relation = g.resolve(v.Relation)
		sh.Nested = g.lower(v.Body)
	case ram.DebugInfo:
		sh.Nested = g.lower(v.Body)
	case ram.EstimateJoinSize:
		sh.Relation = g.resolve(v.Relation)
	}

	return sh
}

func (g *Generator) lowerExprs(exprs []ram.Expr) []*Node {
	if exprs == nil {
		return nil
	}
	out := make([]*Node, len(exprs))
	for i, e := range exprs {
		out[i] = g.lower(e)
	}
	return out
}

func (g *Generator) resolve(name string) *relation.Relation {
	if g.relations == nil {
		return nil
	}
	return g.relations(name)
}

func (g *Generator) nextViewSlot() int {
	slot := g.viewSlots
	g.viewSlots++
	return slot
}

// buildViewContext splits outerFilter into the view-free and view-needing
// pieces, recording which view slots the outer filter and the nested body
// each require. The nested body's own view slots were already assigned
// while lowering sh.Nested above.
func (g *Generator) buildViewContext(outerFilter []ram.Cond, sh *Node) *ViewContext {
	vc := &ViewContext{}
	for _, c := range outerFilter {
		lowered := g.lower(c)
		if needsView(c) {
			vc.ViewedOuterFilter = append(vc.ViewedOuterFilter, lowered)
		} else {
			vc.FreeOuterFilter = append(vc.FreeOuterFilter, lowered)
		}
	}
	vc.NestedViewNodes = collectViewNodes(sh.Nested)
	vc.NestedParallel = isParallel(sh.Nested)
	return vc
}

func needsView(c ram.Cond) bool {
	switch c.(type) {
	case ram.ExistenceCheck, ram.ProvenanceExistenceCheck, ram.EmptinessCheck:
		return true
	default:
		return false
	}
}

func collectViewNodes(n *Node) []*Node {
	if n == nil {
		return nil
	}
	var nodes []*Node
	if n.ViewSlot >= 0 {
		nodes = append(nodes, n)
	}
	nodes = append(nodes, collectViewNodes(n.Nested)...)
	nodes = append(nodes, collectViewNodes(n.Cond)...)
	for _, c := range n.Children {
		nodes = append(nodes, collectViewNodes(c)...)
	}
	return nodes
}

func isParallel(n *Node) bool {
	if n == nil {
		return false
	}
	switch v := n.RAM.(type) {
	case ram.Scan:
		return v.Parallel
	case ram.IndexScan:
		return v.Parallel
	case ram.IfExists:
		return v.Parallel
	case ram.IndexIfExists:
		return v.Parallel
	case ram.Aggregate:
		return v.Parallel
	default:
		return false
	}
}
