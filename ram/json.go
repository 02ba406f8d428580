// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ram

import (
	"encoding/json"
	"fmt"

	"github.com/ramengine/ramengine/domain"
)

// Program's wire format is a JSON object naming the relation declarations,
// the main statement tree, and the named subroutine trees. Every Node,
// Expr, and Cond in the tree serializes as a JSON object carrying a "kind"
// discriminator (the Go type name) alongside that type's fields; nested
// Node/Expr/Cond-typed fields recurse through the same encoding. This is
// the format the run command's program loader reads, and the one a
// front-end compiling a higher-level language down to RAM would emit.

// MarshalJSON encodes a Program.
func (p Program) MarshalJSON() ([]byte, error) {
	main, err := marshalNode(p.Main)
	if err != nil {
		return nil, err
	}
	subs := make(map[string]json.RawMessage, len(p.Subroutines))
	for name, n := range p.Subroutines {
		raw, err := marshalNode(n)
		if err != nil {
			return nil, fmt.Errorf("ram: subroutine %q: %w", name, err)
		}
		subs[name] = raw
	}
	return json.Marshal(struct {
		Relations   []RelationDecl             `json:"relations"`
		Main        json.RawMessage            `json:"main"`
		Subroutines map[string]json.RawMessage `json:"subroutines,omitempty"`
	}{p.Relations, main, subs})
}

// UnmarshalJSON decodes a Program.
func (p *Program) UnmarshalJSON(data []byte) error {
	var wire struct {
		Relations   []RelationDecl             `json:"relations"`
		Main        json.RawMessage            `json:"main"`
		Subroutines map[string]json.RawMessage `json:"subroutines"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	main, err := unmarshalNode(wire.Main)
	if err != nil {
		return fmt.Errorf("ram: main: %w", err)
	}
	subs := make(map[string]Node, len(wire.Subroutines))
	for name, raw := range wire.Subroutines {
		n, err := unmarshalNode(raw)
		if err != nil {
			return fmt.Errorf("ram: subroutine %q: %w", name, err)
		}
		subs[name] = n
	}
	p.Relations = wire.Relations
	p.Main = main
	p.Subroutines = subs
	return nil
}

func marshalNodes(ns []Node) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(ns))
	for i, n := range ns {
		raw, err := marshalNode(n)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func marshalExprs(es []Expr) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(es))
	for i, e := range es {
		raw, err := marshalNode(e)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func marshalConds(cs []Cond) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(cs))
	for i, c := range cs {
		raw, err := marshalNode(c)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

// marshalNode encodes any Node (Expr and Cond included) as a "kind"-tagged
// JSON object.
func marshalNode(n Node) (json.RawMessage, error) {
	if n == nil {
		return json.RawMessage("null"), nil
	}

	switch v := n.(type) {
	case NumericConstant:
		return marshalKind("NumericConstant", v)
	case StringConstant:
		return marshalKind("StringConstant", v)
	case Variable:
		return marshalKind("Variable", v)
	case TupleElement:
		return marshalKind("TupleElement", v)
	case AutoIncrement:
		return marshalKind("AutoIncrement", v)
	case IntrinsicOperator:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("IntrinsicOperator", struct {
			Op   string            `json:"op"`
			Type domain_Type       `json:"type"`
			Args []json.RawMessage `json:"args"`
		}{v.Op, domain_Type(v.Type), args})
	case UserDefinedOperator:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("UserDefinedOperator", struct {
			Name     string            `json:"name"`
			Stateful bool              `json:"stateful"`
			Args     []json.RawMessage `json:"args"`
		}{v.Name, v.Stateful, args})
	case PackRecord:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("PackRecord", struct {
			Args []json.RawMessage `json:"args"`
		}{args})
	case SubroutineArgument:
		return marshalKind("SubroutineArgument", v)

	case True:
		return marshalKind("True", v)
	case False:
		return marshalKind("False", v)
	case Conjunction:
		args, err := marshalConds(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("Conjunction", struct {
			Args []json.RawMessage `json:"args"`
		}{args})
	case Negation:
		arg, err := marshalNode(v.Arg)
		if err != nil {
			return nil, err
		}
		return marshalKind("Negation", struct {
			Arg json.RawMessage `json:"arg"`
		}{arg})
	case Constraint:
		lhs, err := marshalNode(v.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := marshalNode(v.RHS)
		if err != nil {
			return nil, err
		}
		return marshalKind("Constraint", struct {
			Op   string          `json:"op"`
			Type domain_Type     `json:"type"`
			LHS  json.RawMessage `json:"lhs"`
			RHS  json.RawMessage `json:"rhs"`
		}{v.Op, domain_Type(v.Type), lhs, rhs})
	case EmptinessCheck:
		return marshalKind("EmptinessCheck", v)
	case ExistenceCheck:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("ExistenceCheck", struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Args     []json.RawMessage `json:"args"`
		}{v.Relation, v.IndexPos, args})
	case ProvenanceExistenceCheck:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		thresh, err := marshalNode(v.LevelThreshold)
		if err != nil {
			return nil, err
		}
		return marshalKind("ProvenanceExistenceCheck", struct {
			Relation       string            `json:"relation"`
			IndexPos       int               `json:"indexPos"`
			Args           []json.RawMessage `json:"args"`
			LevelThreshold json.RawMessage   `json:"levelThreshold"`
		}{v.Relation, v.IndexPos, args, thresh})

	case Scan:
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("Scan", struct {
			Relation string          `json:"relation"`
			TupleID  int             `json:"tupleId"`
			Parallel bool            `json:"parallel"`
			Nested   json.RawMessage `json:"nested"`
		}{v.Relation, v.TupleID, v.Parallel, nested})
	case IndexScan:
		pattern, err := marshalExprs(v.Pattern)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("IndexScan", struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Pattern  []json.RawMessage `json:"pattern"`
			TupleID  int               `json:"tupleId"`
			Parallel bool              `json:"parallel"`
			Nested   json.RawMessage   `json:"nested"`
		}{v.Relation, v.IndexPos, pattern, v.TupleID, v.Parallel, nested})
	case IfExists:
		cond, err := marshalNode(v.Cond)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("IfExists", struct {
			Relation string          `json:"relation"`
			Cond     json.RawMessage `json:"cond"`
			TupleID  int             `json:"tupleId"`
			Parallel bool            `json:"parallel"`
			Nested   json.RawMessage `json:"nested"`
		}{v.Relation, cond, v.TupleID, v.Parallel, nested})
	case IndexIfExists:
		pattern, err := marshalExprs(v.Pattern)
		if err != nil {
			return nil, err
		}
		cond, err := marshalNode(v.Cond)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("IndexIfExists", struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Pattern  []json.RawMessage `json:"pattern"`
			Cond     json.RawMessage   `json:"cond"`
			TupleID  int               `json:"tupleId"`
			Parallel bool              `json:"parallel"`
			Nested   json.RawMessage   `json:"nested"`
		}{v.Relation, v.IndexPos, pattern, cond, v.TupleID, v.Parallel, nested})
	case UnpackRecord:
		handle, err := marshalNode(v.Handle)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("UnpackRecord", struct {
			Handle  json.RawMessage `json:"handle"`
			Arity   int             `json:"arity"`
			TupleID int             `json:"tupleId"`
			Nested  json.RawMessage `json:"nested"`
		}{handle, v.Arity, v.TupleID, nested})
	case RangeScan:
		lo, err := marshalNode(v.Lo)
		if err != nil {
			return nil, err
		}
		hi, err := marshalNode(v.Hi)
		if err != nil {
			return nil, err
		}
		step, err := marshalNode(v.Step)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("RangeScan", struct {
			Lo      json.RawMessage `json:"lo"`
			Hi      json.RawMessage `json:"hi"`
			Step    json.RawMessage `json:"step"`
			Type    domain_Type     `json:"type"`
			TupleID int             `json:"tupleId"`
			Nested  json.RawMessage `json:"nested"`
		}{lo, hi, step, domain_Type(v.Type), v.TupleID, nested})
	case Aggregate:
		pattern, err := marshalExprs(v.Pattern)
		if err != nil {
			return nil, err
		}
		target, err := marshalNode(v.Target)
		if err != nil {
			return nil, err
		}
		filter, err := marshalNode(v.Filter)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("Aggregate", struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Pattern  []json.RawMessage `json:"pattern"`
			Func     AggFunc           `json:"func"`
			UserFunc string            `json:"userFunc"`
			Target   json.RawMessage   `json:"target"`
			Filter   json.RawMessage   `json:"filter"`
			TupleID  int               `json:"tupleId"`
			Parallel bool              `json:"parallel"`
			Nested   json.RawMessage   `json:"nested"`
		}{v.Relation, v.IndexPos, pattern, v.Func, v.UserFunc, target, filter, v.TupleID, v.Parallel, nested})

	case Insert:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("Insert", struct {
			Relation string            `json:"relation"`
			Args     []json.RawMessage `json:"args"`
		}{v.Relation, args})
	case GuardedInsert:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		guard, err := marshalNode(v.Guard)
		if err != nil {
			return nil, err
		}
		return marshalKind("GuardedInsert", struct {
			Relation string            `json:"relation"`
			Args     []json.RawMessage `json:"args"`
			Guard    json.RawMessage   `json:"guard"`
		}{v.Relation, args, guard})
	case Erase:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("Erase", struct {
			Relation string            `json:"relation"`
			Args     []json.RawMessage `json:"args"`
		}{v.Relation, args})
	case SubroutineReturn:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("SubroutineReturn", struct {
			Args []json.RawMessage `json:"args"`
		}{args})
	case Filter:
		cond, err := marshalNode(v.Cond)
		if err != nil {
			return nil, err
		}
		return marshalKind("Filter", struct {
			Cond json.RawMessage `json:"cond"`
		}{cond})
	case Break:
		return marshalKind("Break", v)
	case Assign:
		value, err := marshalNode(v.Value)
		if err != nil {
			return nil, err
		}
		return marshalKind("Assign", struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}{v.Name, value})

	case Sequence:
		stmts, err := marshalNodes(v.Stmts)
		if err != nil {
			return nil, err
		}
		return marshalKind("Sequence", struct {
			Stmts []json.RawMessage `json:"stmts"`
		}{stmts})
	case Parallel:
		stmts, err := marshalNodes(v.Stmts)
		if err != nil {
			return nil, err
		}
		return marshalKind("Parallel", struct {
			Stmts []json.RawMessage `json:"stmts"`
		}{stmts})
	case Loop:
		body, err := marshalNode(v.Body)
		if err != nil {
			return nil, err
		}
		return marshalKind("Loop", struct {
			Body json.RawMessage `json:"body"`
		}{body})
	case Exit:
		cond, err := marshalNode(v.Cond)
		if err != nil {
			return nil, err
		}
		return marshalKind("Exit", struct {
			Cond json.RawMessage `json:"cond"`
		}{cond})
	case Query:
		filters, err := marshalConds(v.OuterFilter)
		if err != nil {
			return nil, err
		}
		nested, err := marshalNode(v.Nested)
		if err != nil {
			return nil, err
		}
		return marshalKind("Query", struct {
			OuterFilter []json.RawMessage `json:"outerFilter"`
			Nested      json.RawMessage   `json:"nested"`
		}{filters, nested})
	case Call:
		args, err := marshalExprs(v.Args)
		if err != nil {
			return nil, err
		}
		return marshalKind("Call", struct {
			Subroutine string            `json:"subroutine"`
			Args       []json.RawMessage `json:"args"`
			Ret        []string          `json:"ret"`
		}{v.Subroutine, args, v.Ret})
	case IO:
		return marshalKind("IO", v)
	case Clear:
		return marshalKind("Clear", v)
	case Swap:
		return marshalKind("Swap", v)
	case MergeExtend:
		return marshalKind("MergeExtend", v)
	case LogSize:
		return marshalKind("LogSize", v)
	case LogTimer:
		body, err := marshalNode(v.Body)
		if err != nil {
			return nil, err
		}
		return marshalKind("LogTimer", struct {
			Message string          `json:"message"`
			Body    json.RawMessage `json:"body"`
		}{v.Message, body})
	case LogRelationTimer:
		body, err := marshalNode(v.Body)
		if err != nil {
			return nil, err
		}
		return marshalKind("LogRelationTimer", struct {
			Relation string          `json:"relation"`
			Message  string          `json:"message"`
			Body     json.RawMessage `json:"body"`
		}{v.Relation, v.Message, body})
	case DebugInfo:
		body, err := marshalNode(v.Body)
		if err != nil {
			return nil, err
		}
		return marshalKind("DebugInfo", struct {
			Message string          `json:"message"`
			Body    json.RawMessage `json:"body"`
		}{v.Message, body})
	case EstimateJoinSize:
		return marshalKind("EstimateJoinSize", v)

	default:
		return nil, fmt.Errorf("ram: unknown node type %T", n)
	}
}

// marshalKind prepends a "kind" field (the Go type name) to body's own
// JSON object.
func marshalKind(kind string, body interface{}) (json.RawMessage, error) {
	inner, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, err
	}
	fields["kind"] = mustMarshalString(kind)
	return json.Marshal(fields)
}

func mustMarshalString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// domain_Type is domain.Type's wire representation: a plain JSON number
// matching its uint8 underlying type.
type domain_Type = uint8

func domainType(u uint8) domain.Type { return domain.Type(u) }

func unmarshalNodes(raws []json.RawMessage) ([]Node, error) {
	out := make([]Node, len(raws))
	for i, raw := range raws {
		n, err := unmarshalNode(raw)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func unmarshalExprs(raws []json.RawMessage) ([]Expr, error) {
	out := make([]Expr, len(raws))
	for i, raw := range raws {
		e, err := unmarshalExpr(raw)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func unmarshalConds(raws []json.RawMessage) ([]Cond, error) {
	out := make([]Cond, len(raws))
	for i, raw := range raws {
		c, err := unmarshalCond(raw)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func unmarshalExpr(raw json.RawMessage) (Expr, error) {
	n, err := unmarshalNode(raw)
	if err != nil || n == nil {
		return nil, err
	}
	e, ok := n.(Expr)
	if !ok {
		return nil, fmt.Errorf("ram: node %T is not an expression", n)
	}
	return e, nil
}

func unmarshalCond(raw json.RawMessage) (Cond, error) {
	n, err := unmarshalNode(raw)
	if err != nil || n == nil {
		return nil, err
	}
	c, ok := n.(Cond)
	if !ok {
		return nil, fmt.Errorf("ram: node %T is not a condition", n)
	}
	return c, nil
}

// unmarshalNode decodes any "kind"-tagged JSON object into its Node.
func unmarshalNode(raw json.RawMessage) (Node, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Kind {
	case "NumericConstant":
		var s NumericConstant
		return s, json.Unmarshal(raw, &s)
	case "StringConstant":
		var s StringConstant
		return s, json.Unmarshal(raw, &s)
	case "Variable":
		var s Variable
		return s, json.Unmarshal(raw, &s)
	case "TupleElement":
		var s TupleElement
		return s, json.Unmarshal(raw, &s)
	case "AutoIncrement":
		return AutoIncrement{}, nil
	case "IntrinsicOperator":
		var wire struct {
			Op   string            `json:"op"`
			Type uint8             `json:"type"`
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return IntrinsicOperator{Op: wire.Op, Type: domainType(wire.Type), Args: args}, nil
	case "UserDefinedOperator":
		var wire struct {
			Name     string            `json:"name"`
			Stateful bool              `json:"stateful"`
			Args     []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return UserDefinedOperator{Name: wire.Name, Stateful: wire.Stateful, Args: args}, nil
	case "PackRecord":
		var wire struct {
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return PackRecord{Args: args}, nil
	case "SubroutineArgument":
		var s SubroutineArgument
		return s, json.Unmarshal(raw, &s)

	case "True":
		return True{}, nil
	case "False":
		return False{}, nil
	case "Conjunction":
		var wire struct {
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalConds(wire.Args)
		if err != nil {
			return nil, err
		}
		return Conjunction{Args: args}, nil
	case "Negation":
		var wire struct {
			Arg json.RawMessage `json:"arg"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		arg, err := unmarshalCond(wire.Arg)
		if err != nil {
			return nil, err
		}
		return Negation{Arg: arg}, nil
	case "Constraint":
		var wire struct {
			Op   string          `json:"op"`
			Type uint8           `json:"type"`
			LHS  json.RawMessage `json:"lhs"`
			RHS  json.RawMessage `json:"rhs"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		lhs, err := unmarshalExpr(wire.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := unmarshalExpr(wire.RHS)
		if err != nil {
			return nil, err
		}
		return Constraint{Op: wire.Op, Type: domainType(wire.Type), LHS: lhs, RHS: rhs}, nil
	case "EmptinessCheck":
		var s EmptinessCheck
		return s, json.Unmarshal(raw, &s)
	case "ExistenceCheck":
		var wire struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Args     []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return ExistenceCheck{Relation: wire.Relation, IndexPos: wire.IndexPos, Args: args}, nil
	case "ProvenanceExistenceCheck":
		var wire struct {
			Relation       string            `json:"relation"`
			IndexPos       int               `json:"indexPos"`
			Args           []json.RawMessage `json:"args"`
			LevelThreshold json.RawMessage   `json:"levelThreshold"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		thresh, err := unmarshalExpr(wire.LevelThreshold)
		if err != nil {
			return nil, err
		}
		return ProvenanceExistenceCheck{Relation: wire.Relation, IndexPos: wire.IndexPos, Args: args, LevelThreshold: thresh}, nil

	case "Scan":
		var wire struct {
			Relation string          `json:"relation"`
			TupleID  int             `json:"tupleId"`
			Parallel bool            `json:"parallel"`
			Nested   json.RawMessage `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return Scan{Relation: wire.Relation, TupleID: wire.TupleID, Parallel: wire.Parallel, Nested: nested}, nil
	case "IndexScan":
		var wire struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Pattern  []json.RawMessage `json:"pattern"`
			TupleID  int               `json:"tupleId"`
			Parallel bool              `json:"parallel"`
			Nested   json.RawMessage   `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		pattern, err := unmarshalExprs(wire.Pattern)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return IndexScan{Relation: wire.Relation, IndexPos: wire.IndexPos, Pattern: pattern, TupleID: wire.TupleID, Parallel: wire.Parallel, Nested: nested}, nil
	case "IfExists":
		var wire struct {
			Relation string          `json:"relation"`
			Cond     json.RawMessage `json:"cond"`
			TupleID  int             `json:"tupleId"`
			Parallel bool            `json:"parallel"`
			Nested   json.RawMessage `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		cond, err := unmarshalCond(wire.Cond)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return IfExists{Relation: wire.Relation, Cond: cond, TupleID: wire.TupleID, Parallel: wire.Parallel, Nested: nested}, nil
	case "IndexIfExists":
		var wire struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Pattern  []json.RawMessage `json:"pattern"`
			Cond     json.RawMessage   `json:"cond"`
			TupleID  int               `json:"tupleId"`
			Parallel bool              `json:"parallel"`
			Nested   json.RawMessage   `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		pattern, err := unmarshalExprs(wire.Pattern)
		if err != nil {
			return nil, err
		}
		cond, err := unmarshalCond(wire.Cond)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return IndexIfExists{Relation: wire.Relation, IndexPos: wire.IndexPos, Pattern: pattern, Cond: cond, TupleID: wire.TupleID, Parallel: wire.Parallel, Nested: nested}, nil
	case "UnpackRecord":
		var wire struct {
			Handle  json.RawMessage `json:"handle"`
			Arity   int             `json:"arity"`
			TupleID int             `json:"tupleId"`
			Nested  json.RawMessage `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		handle, err := unmarshalExpr(wire.Handle)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return UnpackRecord{Handle: handle, Arity: wire.Arity, TupleID: wire.TupleID, Nested: nested}, nil
	case "RangeScan":
		var wire struct {
			Lo      json.RawMessage `json:"lo"`
			Hi      json.RawMessage `json:"hi"`
			Step    json.RawMessage `json:"step"`
			Type    uint8           `json:"type"`
			TupleID int             `json:"tupleId"`
			Nested  json.RawMessage `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		lo, err := unmarshalExpr(wire.Lo)
		if err != nil {
			return nil, err
		}
		hi, err := unmarshalExpr(wire.Hi)
		if err != nil {
			return nil, err
		}
		step, err := unmarshalExpr(wire.Step)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return RangeScan{Lo: lo, Hi: hi, Step: step, Type: domainType(wire.Type), TupleID: wire.TupleID, Nested: nested}, nil
	case "Aggregate":
		var wire struct {
			Relation string            `json:"relation"`
			IndexPos int               `json:"indexPos"`
			Pattern  []json.RawMessage `json:"pattern"`
			Func     AggFunc           `json:"func"`
			UserFunc string            `json:"userFunc"`
			Target   json.RawMessage   `json:"target"`
			Filter   json.RawMessage   `json:"filter"`
			TupleID  int               `json:"tupleId"`
			Parallel bool              `json:"parallel"`
			Nested   json.RawMessage   `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		pattern, err := unmarshalExprs(wire.Pattern)
		if err != nil {
			return nil, err
		}
		target, err := unmarshalExpr(wire.Target)
		if err != nil {
			return nil, err
		}
		filter, err := unmarshalCond(wire.Filter)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return Aggregate{
			Relation: wire.Relation, IndexPos: wire.IndexPos, Pattern: pattern,
			Func: wire.Func, UserFunc: wire.UserFunc, Target: target, Filter: filter,
			TupleID: wire.TupleID, Parallel: wire.Parallel, Nested: nested,
		}, nil

	case "Insert":
		var wire struct {
			Relation string            `json:"relation"`
			Args     []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return Insert{Relation: wire.Relation, Args: args}, nil
	case "GuardedInsert":
		var wire struct {
			Relation string            `json:"relation"`
			Args     []json.RawMessage `json:"args"`
			Guard    json.RawMessage   `json:"guard"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		guard, err := unmarshalCond(wire.Guard)
		if err != nil {
			return nil, err
		}
		return GuardedInsert{Relation: wire.Relation, Args: args, Guard: guard}, nil
	case "Erase":
		var wire struct {
			Relation string            `json:"relation"`
			Args     []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return Erase{Relation: wire.Relation, Args: args}, nil
	case "SubroutineReturn":
		var wire struct {
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return SubroutineReturn{Args: args}, nil
	case "Filter":
		var wire struct {
			Cond json.RawMessage `json:"cond"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		cond, err := unmarshalCond(wire.Cond)
		if err != nil {
			return nil, err
		}
		return Filter{Cond: cond}, nil
	case "Break":
		return Break{}, nil
	case "Assign":
		var wire struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		value, err := unmarshalExpr(wire.Value)
		if err != nil {
			return nil, err
		}
		return Assign{Name: wire.Name, Value: value}, nil

	case "Sequence":
		var wire struct {
			Stmts []json.RawMessage `json:"stmts"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		stmts, err := unmarshalNodes(wire.Stmts)
		if err != nil {
			return nil, err
		}
		return Sequence{Stmts: stmts}, nil
	case "Parallel":
		var wire struct {
			Stmts []json.RawMessage `json:"stmts"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		stmts, err := unmarshalNodes(wire.Stmts)
		if err != nil {
			return nil, err
		}
		return Parallel{Stmts: stmts}, nil
	case "Loop":
		var wire struct {
			Body json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		body, err := unmarshalNode(wire.Body)
		if err != nil {
			return nil, err
		}
		return Loop{Body: body}, nil
	case "Exit":
		var wire struct {
			Cond json.RawMessage `json:"cond"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		cond, err := unmarshalCond(wire.Cond)
		if err != nil {
			return nil, err
		}
		return Exit{Cond: cond}, nil
	case "Query":
		var wire struct {
			OuterFilter []json.RawMessage `json:"outerFilter"`
			Nested      json.RawMessage   `json:"nested"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		filters, err := unmarshalConds(wire.OuterFilter)
		if err != nil {
			return nil, err
		}
		nested, err := unmarshalNode(wire.Nested)
		if err != nil {
			return nil, err
		}
		return Query{OuterFilter: filters, Nested: nested}, nil
	case "Call":
		var wire struct {
			Subroutine string            `json:"subroutine"`
			Args       []json.RawMessage `json:"args"`
			Ret        []string          `json:"ret"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		args, err := unmarshalExprs(wire.Args)
		if err != nil {
			return nil, err
		}
		return Call{Subroutine: wire.Subroutine, Args: args, Ret: wire.Ret}, nil
	case "IO":
		var s IO
		return s, json.Unmarshal(raw, &s)
	case "Clear":
		var s Clear
		return s, json.Unmarshal(raw, &s)
	case "Swap":
		var s Swap
		return s, json.Unmarshal(raw, &s)
	case "MergeExtend":
		var s MergeExtend
		return s, json.Unmarshal(raw, &s)
	case "LogSize":
		var s LogSize
		return s, json.Unmarshal(raw, &s)
	case "LogTimer":
		var wire struct {
			Message string          `json:"message"`
			Body    json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		body, err := unmarshalNode(wire.Body)
		if err != nil {
			return nil, err
		}
		return LogTimer{Message: wire.Message, Body: body}, nil
	case "LogRelationTimer":
		var wire struct {
			Relation string          `json:"relation"`
			Message  string          `json:"message"`
			Body     json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		body, err := unmarshalNode(wire.Body)
		if err != nil {
			return nil, err
		}
		return LogRelationTimer{Relation: wire.Relation, Message: wire.Message, Body: body}, nil
	case "DebugInfo":
		var wire struct {
			Message string          `json:"message"`
			Body    json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		body, err := unmarshalNode(wire.Body)
		if err != nil {
			return nil, err
		}
		return DebugInfo{Message: wire.Message, Body: body}, nil
	case "EstimateJoinSize":
		var s EstimateJoinSize
		return s, json.Unmarshal(raw, &s)

	default:
		return nil, fmt.Errorf("ram: unknown node kind %q", head.Kind)
	}
}
