// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package domain

import "testing"

// stringCodec is a minimal SymbolCodec for tests: symbol handles are just
// indices into an append-only slice of strings.
type stringCodec struct {
	strings []string
	byStr   map[string]Domain
}

func newStringCodec() *stringCodec {
	return &stringCodec{byStr: map[string]Domain{}}
}

func (c *stringCodec) Encode(s string) Domain {
	if d, ok := c.byStr[s]; ok {
		return d
	}
	d := Domain(len(c.strings))
	c.strings = append(c.strings, s)
	c.byStr[s] = d
	return d
}

func (c *stringCodec) Decode(d Domain) string {
	return c.strings[int(d)]
}

func TestEvalBinaryArithmetic(t *testing.T) {
	cases := []struct {
		op   BinaryOp
		t    Type
		a, b Domain
		want Domain
	}{
		{OpAdd, Signed, FromSigned(2), FromSigned(3), FromSigned(5)},
		{OpSub, Signed, FromSigned(5), FromSigned(3), FromSigned(2)},
		{OpMul, Unsigned, FromUnsigned(4), FromUnsigned(5), FromUnsigned(20)},
		{OpDiv, Signed, FromSigned(7), FromSigned(2), FromSigned(3)},
		{OpMod, Signed, FromSigned(7), FromSigned(2), FromSigned(1)},
		{OpBAnd, Signed, FromSigned(0b110), FromSigned(0b011), FromSigned(0b010)},
		{OpBOr, Signed, FromSigned(0b100), FromSigned(0b011), FromSigned(0b111)},
	}
	for _, c := range cases {
		if got := EvalBinary(c.op, c.t, c.a, c.b, nil); got != c.want {
			t.Errorf("EvalBinary(%v, %v, %v, %v) = %v, want %v", c.op, c.t, c.a, c.b, got, c.want)
		}
	}
}

func TestEvalBinaryDivideByZeroWarnsAndYieldsZero(t *testing.T) {
	if got := EvalBinary(OpDiv, Signed, FromSigned(7), FromSigned(0), nil); got != FromSigned(0) {
		t.Errorf("divide by zero = %v, want 0", got)
	}
}

func TestEvalBinaryCat(t *testing.T) {
	codec := newStringCodec()
	a := codec.Encode("foo")
	b := codec.Encode("bar")
	got := EvalBinary(OpCat, Symbol, a, b, codec)
	if codec.Decode(got) != "foobar" {
		t.Errorf("CAT = %q, want foobar", codec.Decode(got))
	}
}

func TestEvalBinaryMatch(t *testing.T) {
	codec := newStringCodec()
	subject := codec.Encode("hello123")
	pattern := codec.Encode("^hello[0-9]+$")
	if got := EvalBinary(OpMatch, Symbol, subject, pattern, codec); got != FromSigned(1) {
		t.Errorf("MATCH(%q) = %v, want true", "hello123", got)
	}
	noMatch := codec.Encode("goodbye")
	if got := EvalBinary(OpMatch, Symbol, noMatch, pattern, codec); got != FromSigned(0) {
		t.Errorf("MATCH(%q) = %v, want false", "goodbye", got)
	}
}

func TestEvalUnary(t *testing.T) {
	if got := EvalUnary(OpNeg, Signed, FromSigned(5)); got != FromSigned(-5) {
		t.Errorf("NEG(5) = %v, want -5", got)
	}
	if got := EvalUnary(OpLNot, Signed, FromSigned(0)); got != FromSigned(1) {
		t.Errorf("LNOT(0) = %v, want 1", got)
	}
	if got := EvalUnary(OpI2F, Signed, FromSigned(3)); got.AsFloat() != 3.0 {
		t.Errorf("I2F(3) = %v, want 3.0", got.AsFloat())
	}
}

func TestMinMax(t *testing.T) {
	if got := EvalBinary(OpMin, Signed, FromSigned(3), FromSigned(5), nil); got != FromSigned(3) {
		t.Errorf("MIN(3,5) = %v, want 3", got)
	}
	if got := EvalBinary(OpMax, Signed, FromSigned(3), FromSigned(5), nil); got != FromSigned(5) {
		t.Errorf("MAX(3,5) = %v, want 5", got)
	}
}

func TestSubstr(t *testing.T) {
	codec := newStringCodec()
	s := codec.Encode("hello world")
	got := Substr(codec, s, 6, 5)
	if codec.Decode(got) != "world" {
		t.Errorf("Substr = %q, want world", codec.Decode(got))
	}
}

func TestSubstrOutOfRangeYieldsEmpty(t *testing.T) {
	codec := newStringCodec()
	s := codec.Encode("hi")
	got := Substr(codec, s, 10, 1)
	if codec.Decode(got) != "" {
		t.Errorf("Substr out of range = %q, want empty", codec.Decode(got))
	}
}

func TestParseAndFormatNumber(t *testing.T) {
	codec := newStringCodec()
	s := codec.Encode("42")
	d := ParseNumber(codec, s, Signed)
	if d.AsSigned() != 42 {
		t.Errorf("ParseNumber = %d, want 42", d.AsSigned())
	}
	back := FormatNumber(codec, d, Signed)
	if codec.Decode(back) != "42" {
		t.Errorf("FormatNumber = %q, want 42", codec.Decode(back))
	}
}

func TestParseNumberInvalidWarnsAndYieldsZero(t *testing.T) {
	codec := newStringCodec()
	s := codec.Encode("not-a-number")
	d := ParseNumber(codec, s, Signed)
	if d.AsSigned() != 0 {
		t.Errorf("ParseNumber(invalid) = %d, want 0", d.AsSigned())
	}
}

func TestCompilePatternInvalidReportsNotOK(t *testing.T) {
	if _, ok := CompilePattern("("); ok {
		t.Errorf("CompilePattern(unbalanced paren) ok = true, want false")
	}
}
