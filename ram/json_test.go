// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ram

import (
	"encoding/json"
	"testing"

	"github.com/ramengine/ramengine/domain"
)

func TestProgramRoundTrip(t *testing.T) {
	p := Program{
		Relations: []RelationDecl{
			{Name: "edge", Arity: 2, Kind: KindBTree},
		},
		Main: Sequence{Stmts: []Node{
			Query{
				OuterFilter: []Cond{
					Negation{Arg: EmptinessCheck{Relation: "edge"}},
				},
				Nested: Scan{
					Relation: "edge",
					TupleID:  0,
					Nested: Filter{
						Cond: Constraint{
							Op:   "<",
							Type: domain.Signed,
							LHS:  TupleElement{TupleID: 0, Col: 0},
							RHS:  NumericConstant{Value: domain.FromSigned(100), Type: domain.Signed},
						},
					},
				},
			},
			Insert{
				Relation: "edge",
				Args: []Expr{
					TupleElement{TupleID: 0, Col: 0},
					IntrinsicOperator{
						Op:   "+",
						Type: domain.Signed,
						Args: []Expr{TupleElement{TupleID: 0, Col: 1}, NumericConstant{Value: domain.FromSigned(1), Type: domain.Signed}},
					},
				},
			},
			Call{Subroutine: "helper", Args: []Expr{Variable{Name: "x"}}, Ret: []string{"y"}},
		}},
		Subroutines: map[string]Node{
			"helper": Sequence{Stmts: []Node{
				SubroutineReturn{Args: []Expr{SubroutineArgument{Index: 0}}},
			}},
		},
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Program
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(got.Relations) != 1 || got.Relations[0].Name != "edge" {
		t.Fatalf("Relations = %+v, want one RelationDecl named edge", got.Relations)
	}

	seq, ok := got.Main.(Sequence)
	if !ok {
		t.Fatalf("Main type = %T, want Sequence", got.Main)
	}
	if len(seq.Stmts) != 3 {
		t.Fatalf("Main.Stmts has %d entries, want 3", len(seq.Stmts))
	}

	query, ok := seq.Stmts[0].(Query)
	if !ok {
		t.Fatalf("Stmts[0] type = %T, want Query", seq.Stmts[0])
	}
	if len(query.OuterFilter) != 1 {
		t.Fatalf("Query.OuterFilter has %d entries, want 1", len(query.OuterFilter))
	}
	neg, ok := query.OuterFilter[0].(Negation)
	if !ok {
		t.Fatalf("OuterFilter[0] type = %T, want Negation", query.OuterFilter[0])
	}
	if _, ok := neg.Arg.(EmptinessCheck); !ok {
		t.Errorf("Negation.Arg type = %T, want EmptinessCheck", neg.Arg)
	}

	scan, ok := query.Nested.(Scan)
	if !ok {
		t.Fatalf("Query.Nested type = %T, want Scan", query.Nested)
	}
	filter, ok := scan.Nested.(Filter)
	if !ok {
		t.Fatalf("Scan.Nested type = %T, want Filter", scan.Nested)
	}
	constraint, ok := filter.Cond.(Constraint)
	if !ok {
		t.Fatalf("Filter.Cond type = %T, want Constraint", filter.Cond)
	}
	if constraint.Op != "<" {
		t.Errorf("Constraint.Op = %q, want <", constraint.Op)
	}
	nc, ok := constraint.RHS.(NumericConstant)
	if !ok || nc.Value.AsSigned() != 100 {
		t.Errorf("Constraint.RHS = %+v, want NumericConstant(100)", constraint.RHS)
	}

	insert, ok := seq.Stmts[1].(Insert)
	if !ok {
		t.Fatalf("Stmts[1] type = %T, want Insert", seq.Stmts[1])
	}
	if len(insert.Args) != 2 {
		t.Fatalf("Insert.Args has %d entries, want 2", len(insert.Args))
	}
	op, ok := insert.Args[1].(IntrinsicOperator)
	if !ok || op.Op != "+" {
		t.Errorf("Insert.Args[1] = %+v, want IntrinsicOperator(+)", insert.Args[1])
	}

	call, ok := seq.Stmts[2].(Call)
	if !ok {
		t.Fatalf("Stmts[2] type = %T, want Call", seq.Stmts[2])
	}
	if call.Subroutine != "helper" || len(call.Ret) != 1 || call.Ret[0] != "y" {
		t.Errorf("Call = %+v, want Subroutine=helper Ret=[y]", call)
	}

	helper, ok := got.Subroutines["helper"]
	if !ok {
		t.Fatal("Subroutines missing \"helper\" after round trip")
	}
	hseq, ok := helper.(Sequence)
	if !ok || len(hseq.Stmts) != 1 {
		t.Fatalf("subroutine helper = %+v, want a one-statement Sequence", helper)
	}
	if _, ok := hseq.Stmts[0].(SubroutineReturn); !ok {
		t.Errorf("helper.Stmts[0] type = %T, want SubroutineReturn", hseq.Stmts[0])
	}
}

func TestNilNodeRoundTripsToNil(t *testing.T) {
	raw, err := marshalNode(nil)
	if err != nil {
		t.Fatalf("marshalNode(nil): %v", err)
	}
	n, err := unmarshalNode(raw)
	if err != nil {
		t.Fatalf("unmarshalNode: %v", err)
	}
	if n != nil {
		t.Errorf("round trip of nil Node = %v, want nil", n)
	}
}

func TestAggregateRoundTrip(t *testing.T) {
	p := Program{
		Main: Aggregate{
			Relation: "scores",
			Pattern:  []Expr{nil, nil},
			Func:     AggMin,
			Target:   TupleElement{TupleID: 0, Col: 1},
			Filter:   True{},
			TupleID:  0,
			Nested:   Insert{Relation: "result", Args: []Expr{Variable{Name: "m"}}},
		},
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Program
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	agg, ok := got.Main.(Aggregate)
	if !ok {
		t.Fatalf("Main type = %T, want Aggregate", got.Main)
	}
	if agg.Func != AggMin {
		t.Errorf("Aggregate.Func = %v, want AggMin", agg.Func)
	}
	if agg.Relation != "scores" {
		t.Errorf("Aggregate.Relation = %q, want scores", agg.Relation)
	}
}
