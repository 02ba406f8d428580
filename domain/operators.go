// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ramengine/ramengine/diag"
)

// UnaryOp enumerates the unary intrinsic operator codes.
type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpBNot
	OpLNot
	OpF2I
	OpI2F
	OpU2I
	OpI2U
	OpU2F
	OpF2U
)

// BinaryOp enumerates the binary intrinsic operator codes.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpBAnd
	OpBOr
	OpBXor
	OpBShiftL
	OpBShiftR
	OpBShiftRUnsigned
	OpMin
	OpMax
	OpCat
	OpSSAdd
	OpMatch
	OpNotMatch
	OpContains
	OpNotContains
)

// SymbolCodec resolves symbol handles to and from strings. It is the
// narrow surface operators need from the SymbolTable external collaborator.
type SymbolCodec interface {
	Encode(string) Domain
	Decode(Domain) string
}

// regexCache caches compiled MATCH/NOT_MATCH patterns; the shadow generator
// precompiles constant patterns directly into the shadow node, so this
// cache mainly serves patterns that vary at runtime.
type regexCache struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

var patterns = &regexCache{cache: map[string]*regexp.Regexp{}}

func (c *regexCache) compile(pattern string) (*regexp.Regexp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.cache[pattern]; ok {
		return re, true
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	c.cache[pattern] = re
	return re, true
}

// CompilePattern precompiles a constant regex pattern at shadow-generation
// time. It reports ok=false, logging a warning, if the pattern is
// malformed; the caller should then fall back to treating every match as
// false.
func CompilePattern(pattern string) (re *regexp.Regexp, ok bool) {
	re, ok = patterns.compile(pattern)
	if !ok {
		diag.Global().Warnf("domain: invalid regex pattern %q", pattern)
	}
	return re, ok
}

// EvalUnary applies a unary operator under type code t to operand a.
func EvalUnary(op UnaryOp, t Type, a Domain) Domain {
	switch op {
	case OpNeg:
		switch t {
		case Signed:
			return FromSigned(-a.AsSigned())
		case Float:
			return FromFloat(-a.AsFloat())
		default:
			diag.Global().Fatalf("domain: unsupported operand type %v for NEG", t)
		}
	case OpBNot:
		return Domain(^uint64(a))
	case OpLNot:
		if a == 0 {
			return FromSigned(1)
		}
		return FromSigned(0)
	case OpF2I:
		return FromSigned(int64(a.AsFloat()))
	case OpI2F:
		return FromFloat(float64(a.AsSigned()))
	case OpU2I:
		return FromSigned(int64(a.AsUnsigned()))
	case OpI2U:
		return FromUnsigned(uint64(a.AsSigned()))
	case OpU2F:
		return FromFloat(float64(a.AsUnsigned()))
	case OpF2U:
		return FromUnsigned(uint64(a.AsFloat()))
	default:
		diag.Global().Fatalf("domain: unknown unary operator %v", op)
	}
	return Nil
}

const shiftMask = Bits - 1

// EvalBinary applies a binary operator under type code t to operands a, b.
// codec is required only for the string-domain operators (CAT, SSADD,
// SUBSTR-adjacent MIN/MAX, MATCH family, CONTAINS family).
func EvalBinary(op BinaryOp, t Type, a, b Domain, codec SymbolCodec) Domain {
	switch op {
	case OpAdd:
		return arith(t, a, b, func(x, y int64) int64 { return x + y }, func(x, y uint64) uint64 { return x + y }, func(x, y float64) float64 { return x + y })
	case OpSub:
		return arith(t, a, b, func(x, y int64) int64 { return x - y }, func(x, y uint64) uint64 { return x - y }, func(x, y float64) float64 { return x - y })
	case OpMul:
		return arith(t, a, b, func(x, y int64) int64 { return x * y }, func(x, y uint64) uint64 { return x * y }, func(x, y float64) float64 { return x * y })
	case OpDiv:
		return divide(t, a, b)
	case OpMod:
		return modulo(t, a, b)
	case OpExp:
		return exponent(t, a, b)
	case OpBAnd:
		return Domain(uint64(a) & uint64(b))
	case OpBOr:
		return Domain(uint64(a) | uint64(b))
	case OpBXor:
		return Domain(uint64(a) ^ uint64(b))
	case OpBShiftL:
		shift := uint64(b) & shiftMask
		return Domain(uint64(a) << shift)
	case OpBShiftR:
		shift := uint64(b) & shiftMask
		return FromSigned(a.AsSigned() >> shift)
	case OpBShiftRUnsigned:
		shift := uint64(b) & shiftMask
		return FromUnsigned(a.AsUnsigned() >> shift)
	case OpMin:
		return minmax(t, a, b, codec, true)
	case OpMax:
		return minmax(t, a, b, codec, false)
	case OpCat, OpSSAdd:
		return codec.Encode(codec.Decode(a) + codec.Decode(b))
	case OpMatch:
		return boolDomain(matches(codec.Decode(b), codec.Decode(a)))
	case OpNotMatch:
		return boolDomain(!matches(codec.Decode(b), codec.Decode(a)))
	case OpContains:
		return boolDomain(strings.Contains(codec.Decode(a), codec.Decode(b)))
	case OpNotContains:
		return boolDomain(!strings.Contains(codec.Decode(a), codec.Decode(b)))
	default:
		diag.Global().Fatalf("domain: unknown binary operator %v", op)
	}
	return Nil
}

func matches(pattern, subject string) bool {
	re, ok := CompilePattern(pattern)
	if !ok {
		return false
	}
	return re.MatchString(subject)
}

func boolDomain(b bool) Domain {
	if b {
		return FromSigned(1)
	}
	return FromSigned(0)
}

func arith(t Type, a, b Domain, si func(int64, int64) int64, ui func(uint64, uint64) uint64, fi func(float64, float64) float64) Domain {
	switch t {
	case Signed:
		return FromSigned(si(a.AsSigned(), b.AsSigned()))
	case Unsigned:
		return FromUnsigned(ui(a.AsUnsigned(), b.AsUnsigned()))
	case Float:
		return FromFloat(fi(a.AsFloat(), b.AsFloat()))
	default:
		diag.Global().Fatalf("domain: unsupported operand type %v for arithmetic", t)
		return Nil
	}
}

func divide(t Type, a, b Domain) Domain {
	switch t {
	case Signed:
		if b.AsSigned() == 0 {
			diag.Global().Warnf("domain: division by zero")
			return FromSigned(0)
		}
		return FromSigned(a.AsSigned() / b.AsSigned())
	case Unsigned:
		if b.AsUnsigned() == 0 {
			diag.Global().Warnf("domain: division by zero")
			return FromUnsigned(0)
		}
		return FromUnsigned(a.AsUnsigned() / b.AsUnsigned())
	case Float:
		return FromFloat(a.AsFloat() / b.AsFloat())
	default:
		diag.Global().Fatalf("domain: unsupported operand type %v for DIV", t)
		return Nil
	}
}

func modulo(t Type, a, b Domain) Domain {
	switch t {
	case Signed:
		if b.AsSigned() == 0 {
			diag.Global().Warnf("domain: modulo by zero")
			return FromSigned(0)
		}
		return FromSigned(a.AsSigned() % b.AsSigned())
	case Unsigned:
		if b.AsUnsigned() == 0 {
			diag.Global().Warnf("domain: modulo by zero")
			return FromUnsigned(0)
		}
		return FromUnsigned(a.AsUnsigned() % b.AsUnsigned())
	case Float:
		return FromFloat(math.Mod(a.AsFloat(), b.AsFloat()))
	default:
		diag.Global().Fatalf("domain: unsupported operand type %v for MOD", t)
		return Nil
	}
}

func exponent(t Type, a, b Domain) Domain {
	switch t {
	case Signed:
		return FromSigned(int64(math.Pow(float64(a.AsSigned()), float64(b.AsSigned()))))
	case Unsigned:
		return FromUnsigned(uint64(math.Pow(float64(a.AsUnsigned()), float64(b.AsUnsigned()))))
	case Float:
		return FromFloat(math.Pow(a.AsFloat(), b.AsFloat()))
	default:
		diag.Global().Fatalf("domain: unsupported operand type %v for EXP", t)
		return Nil
	}
}

func minmax(t Type, a, b Domain, codec SymbolCodec, wantMin bool) Domain {
	less := func() bool {
		switch t {
		case Signed:
			return a.AsSigned() < b.AsSigned()
		case Unsigned:
			return a.AsUnsigned() < b.AsUnsigned()
		case Float:
			return a.AsFloat() < b.AsFloat()
		case Symbol:
			return codec.Decode(a) < codec.Decode(b)
		default:
			diag.Global().Fatalf("domain: unsupported operand type %v for MIN/MAX", t)
			return false
		}
	}()
	if less == wantMin {
		return a
	}
	return b
}

// Substr returns the substring of the decoded symbol s starting at rune
// offset i with length n. Out-of-range requests emit a warning and yield
// the empty symbol, per the engine's non-fatal string-op error policy.
func Substr(codec SymbolCodec, s Domain, i, n int64) Domain {
	str := codec.Decode(s)
	runes := []rune(str)
	if i < 0 || int(i) > len(runes) || n < 0 {
		diag.Global().Warnf("domain: substr(%q, %d, %d) out of range", str, i, n)
		return codec.Encode("")
	}
	end := int(i) + int(n)
	if end > len(runes) {
		end = len(runes)
	}
	return codec.Encode(string(runes[i:end]))
}

// ParseNumber converts a decoded symbol to a Domain under numeric type t,
// base 10.
func ParseNumber(codec SymbolCodec, s Domain, t Type) Domain {
	str := codec.Decode(s)
	switch t {
	case Signed:
		v, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			diag.Global().Warnf("domain: cannot parse %q as signed", str)
			return FromSigned(0)
		}
		return FromSigned(v)
	case Unsigned:
		v, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			diag.Global().Warnf("domain: cannot parse %q as unsigned", str)
			return FromUnsigned(0)
		}
		return FromUnsigned(v)
	case Float:
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			diag.Global().Warnf("domain: cannot parse %q as float", str)
			return FromFloat(0)
		}
		return FromFloat(v)
	default:
		diag.Global().Fatalf("domain: unsupported target type %v for to_number coercion", t)
		return Nil
	}
}

// FormatNumber renders a numeric Domain under type t as a base-10 symbol.
func FormatNumber(codec SymbolCodec, d Domain, t Type) Domain {
	switch t {
	case Signed:
		return codec.Encode(strconv.FormatInt(d.AsSigned(), 10))
	case Unsigned:
		return codec.Encode(strconv.FormatUint(d.AsUnsigned(), 10))
	case Float:
		return codec.Encode(strconv.FormatFloat(d.AsFloat(), 'g', -1, 64))
	default:
		diag.Global().Fatalf("domain: unsupported source type %v for tostring", t)
		return Nil
	}
}
