// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package shadow

import (
	"testing"

	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/functor"
	"github.com/ramengine/ramengine/ram"
	"github.com/ramengine/ramengine/relation"
)

func testResolver() (RelationResolver, *relation.Relation) {
	r := relation.New("edge", 2, 0, relation.KindBTree, nil)
	return func(name string) *relation.Relation {
		if name == "edge" {
			return r
		}
		return nil
	}, r
}

func TestLowerInsertResolvesRelationAndArgs(t *testing.T) {
	resolve, r := testResolver()
	g := NewGenerator(resolve, nil)

	sh := g.lower(ram.Insert{
		Relation: "edge",
		Args: []ram.Expr{
			ram.NumericConstant{Value: domain.FromSigned(1), Type: domain.Signed},
			ram.Variable{Name: "y"},
		},
	})

	if sh.Relation != r {
		t.Error("lower(Insert) did not resolve Relation to the expected *relation.Relation")
	}
	if len(sh.Children) != 2 {
		t.Fatalf("lower(Insert).Children has %d entries, want 2", len(sh.Children))
	}
	if _, ok := sh.Children[1].RAM.(ram.Variable); !ok {
		t.Errorf("Children[1].RAM = %T, want ram.Variable", sh.Children[1].RAM)
	}
}

func TestLowerScanAssignsViewSlotMinusOneAndNestsBody(t *testing.T) {
	resolve, r := testResolver()
	g := NewGenerator(resolve, nil)

	sh := g.lower(ram.Scan{
		Relation: "edge",
		TupleID:  0,
		Nested:   ram.Insert{Relation: "edge"},
	})

	if sh.Relation != r {
		t.Error("lower(Scan) did not resolve Relation")
	}
	if sh.ViewSlot != -1 {
		t.Errorf("lower(Scan).ViewSlot = %d, want -1 (tuple loops don't need a view slot)", sh.ViewSlot)
	}
	if sh.Nested == nil {
		t.Fatal("lower(Scan).Nested is nil")
	}
	if _, ok := sh.Nested.RAM.(ram.Insert); !ok {
		t.Errorf("Nested.RAM = %T, want ram.Insert", sh.Nested.RAM)
	}
}

func TestLowerExistenceCheckAssignsDistinctViewSlots(t *testing.T) {
	resolve, _ := testResolver()
	g := NewGenerator(resolve, nil)

	a := g.lower(ram.ExistenceCheck{Relation: "edge"})
	b := g.lower(ram.ExistenceCheck{Relation: "edge"})

	if a.ViewSlot < 0 || b.ViewSlot < 0 {
		t.Fatalf("ExistenceCheck ViewSlots = %d, %d, want both >= 0", a.ViewSlot, b.ViewSlot)
	}
	if a.ViewSlot == b.ViewSlot {
		t.Error("two ExistenceCheck nodes share a ViewSlot, want distinct slots")
	}
}

func TestLowerAssignCapturesValueExpr(t *testing.T) {
	resolve, _ := testResolver()
	g := NewGenerator(resolve, nil)

	sh := g.lower(ram.Assign{Name: "x", Value: ram.NumericConstant{Value: domain.FromSigned(9), Type: domain.Signed}})

	if len(sh.Children) != 1 {
		t.Fatalf("lower(Assign).Children has %d entries, want 1", len(sh.Children))
	}
	nc, ok := sh.Children[0].RAM.(ram.NumericConstant)
	if !ok {
		t.Fatalf("Children[0].RAM = %T, want ram.NumericConstant", sh.Children[0].RAM)
	}
	if nc.Value.AsSigned() != 9 {
		t.Errorf("Assign value = %d, want 9", nc.Value.AsSigned())
	}
}

func TestLowerUserDefinedOperatorResolvesFFI(t *testing.T) {
	resolve, _ := testResolver()
	reg := functor.NewRegistry()
	reg.RegisterDirect("double", func(args []domain.Domain, _ []domain.Type) domain.Domain {
		return domain.FromSigned(args[0].AsSigned() * 2)
	})
	g := NewGenerator(resolve, reg.Resolve)

	sh := g.lower(ram.UserDefinedOperator{
		Name: "double",
		Args: []ram.Expr{ram.NumericConstant{Value: domain.FromSigned(21), Type: domain.Signed}},
	})

	if sh.FFI == nil {
		t.Fatal("lower(UserDefinedOperator).FFI is nil, want resolved Descriptor")
	}
	got := sh.FFI.Call(nil, []domain.Domain{domain.FromSigned(21)}, []domain.Type{domain.Signed})
	if got.AsSigned() != 42 {
		t.Errorf("resolved functor call = %d, want 42", got.AsSigned())
	}
}

func TestLowerIntrinsicMatchCompilesConstantPattern(t *testing.T) {
	resolve, _ := testResolver()
	g := NewGenerator(resolve, nil)

	sh := g.lower(ram.IntrinsicOperator{
		Op:   "match",
		Type: domain.Symbol,
		Args: []ram.Expr{
			ram.Variable{Name: "subject"},
			ram.StringConstant{Value: "^[0-9]+$"},
		},
	})

	if sh.CompiledPattern == nil {
		t.Fatal("lower(match with constant pattern).CompiledPattern is nil")
	}
	if !sh.CompiledPattern.MatchString("123") {
		t.Error("compiled pattern does not match \"123\"")
	}
}

func TestLowerQueryBuildsViewContextSplit(t *testing.T) {
	resolve, _ := testResolver()
	g := NewGenerator(resolve, nil)

	sh := g.lower(ram.Query{
		OuterFilter: []ram.Cond{
			ram.True{},
			ram.ExistenceCheck{Relation: "edge"},
		},
		Nested: ram.Insert{Relation: "edge"},
	})

	if sh.ViewContext == nil {
		t.Fatal("lower(Query).ViewContext is nil")
	}
	if len(sh.ViewContext.FreeOuterFilter) != 1 {
		t.Errorf("FreeOuterFilter has %d entries, want 1 (the True{} condition)", len(sh.ViewContext.FreeOuterFilter))
	}
	if len(sh.ViewContext.ViewedOuterFilter) != 1 {
		t.Errorf("ViewedOuterFilter has %d entries, want 1 (the ExistenceCheck)", len(sh.ViewContext.ViewedOuterFilter))
	}
}

func TestGenerateLowersMainAndSubroutines(t *testing.T) {
	resolve, _ := testResolver()
	g := NewGenerator(resolve, nil)

	p := &ram.Program{
		Main: ram.Sequence{Stmts: []ram.Node{ram.Insert{Relation: "edge"}}},
		Subroutines: map[string]ram.Node{
			"helper": ram.SubroutineReturn{},
		},
	}
	main, subs := g.Generate(p)

	if main == nil {
		t.Fatal("Generate returned nil main")
	}
	if _, ok := subs["helper"]; !ok {
		t.Fatal("Generate did not lower subroutine \"helper\"")
	}
}

func TestNilRelationResolverYieldsNilRelation(t *testing.T) {
	g := NewGenerator(nil, nil)
	sh := g.lower(ram.Clear{Relation: "edge"})
	if sh.Relation != nil {
		t.Error("lower with nil RelationResolver produced a non-nil Relation")
	}
}
