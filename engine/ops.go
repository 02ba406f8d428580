// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"strings"

	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
)

var unaryOps = map[string]domain.UnaryOp{
	"neg":  domain.OpNeg,
	"bnot": domain.OpBNot,
	"lnot": domain.OpLNot,
	"f2i":  domain.OpF2I,
	"i2f":  domain.OpI2F,
	"u2i":  domain.OpU2I,
	"i2u":  domain.OpI2U,
	"u2f":  domain.OpU2F,
	"f2u":  domain.OpF2U,
}

var binaryOps = map[string]domain.BinaryOp{
	"+":             domain.OpAdd,
	"-":             domain.OpSub,
	"*":             domain.OpMul,
	"/":             domain.OpDiv,
	"%":             domain.OpMod,
	"exp":           domain.OpExp,
	"band":          domain.OpBAnd,
	"bor":           domain.OpBOr,
	"bxor":          domain.OpBXor,
	"bshl":          domain.OpBShiftL,
	"bshr":          domain.OpBShiftR,
	"bshru":         domain.OpBShiftRUnsigned,
	"min":           domain.OpMin,
	"max":           domain.OpMax,
	"cat":           domain.OpCat,
	"ssadd":         domain.OpSSAdd,
	"match":         domain.OpMatch,
	"not_match":     domain.OpNotMatch,
	"contains":      domain.OpContains,
	"not_contains":  domain.OpNotContains,
}

// evalIntrinsic applies a RAM IntrinsicOperator by canonical name. substr
// and the string<->number coercions take a variable number of typed
// arguments and so fall outside the fixed unary/binary tables; every other
// name routes through domain.EvalUnary/EvalBinary by arity.
func evalIntrinsic(op string, t domain.Type, args []domain.Domain, codec domain.SymbolCodec) domain.Domain {
	switch op {
	case "substr":
		return domain.Substr(codec, args[0], args[1].AsSigned(), args[2].AsSigned())
	case "to_number":
		return domain.ParseNumber(codec, args[0], t)
	case "to_string":
		return domain.FormatNumber(codec, args[0], t)
	}
	if len(args) == 1 {
		if uop, ok := unaryOps[op]; ok {
			return domain.EvalUnary(uop, t, args[0])
		}
	}
	if len(args) == 2 {
		if bop, ok := binaryOps[op]; ok {
			return domain.EvalBinary(bop, t, args[0], args[1], codec)
		}
	}
	diag.Global().Fatalf("engine: unknown intrinsic operator %q (arity %d)", op, len(args))
	return domain.Nil
}

// compareDomains orders a against b under type t, decoding through codec
// for Symbol operands; it returns -1, 0, or 1.
func compareDomains(t domain.Type, a, b domain.Domain, codec domain.SymbolCodec) int {
	switch t {
	case domain.Signed:
		x, y := a.AsSigned(), b.AsSigned()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case domain.Unsigned:
		x, y := a.AsUnsigned(), b.AsUnsigned()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case domain.Float:
		x, y := a.AsFloat(), b.AsFloat()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case domain.Symbol:
		return strings.Compare(codec.Decode(a), codec.Decode(b))
	default:
		diag.Global().Fatalf("engine: unsupported operand type %v for constraint", t)
		return 0
	}
}

// evalConstraint applies a RAM Constraint's relational operator.
func evalConstraint(op string, t domain.Type, a, b domain.Domain, codec domain.SymbolCodec) bool {
	c := compareDomains(t, a, b, codec)
	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		diag.Global().Fatalf("engine: unknown constraint operator %q", op)
		return false
	}
}
