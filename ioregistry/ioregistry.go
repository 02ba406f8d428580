// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package ioregistry implements the IO registry external collaborator: it
// resolves a directive map (operation, IO kind, filename, ...) to a reader
// or writer bound to the active symbol table, so an IO shadow node never
// needs to know which concrete stream format backs a relation.
package ioregistry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
)

// Reader loads every tuple a directive-described source currently holds.
type Reader interface {
	Read() ([]index.Tuple, error)
}

// Writer drains a relation's tuples to a directive-described sink.
type Writer interface {
	Write(tuples []index.Tuple) error
}

// Registry resolves directive maps to readers/writers. The default
// implementation below only understands the "file" IO kind over CSV, the
// narrowest concrete binding that exercises the external contract; callers
// needing bundle/SQL/LLM-backed sources register additional factories.
type Registry struct {
	codec    domain.SymbolCodec
	factories map[string]Factory
}

// Factory builds a Reader/Writer pair for one IO kind ("file", "stdout", …).
type Factory interface {
	Reader(directives map[string]string, arity, auxArity int) (Reader, error)
	Writer(directives map[string]string, arity, auxArity int) (Writer, error)
}

// New returns a Registry whose string-typed tuple columns are
// encoded/decoded through codec.
func New(codec domain.SymbolCodec) *Registry {
	r := &Registry{codec: codec, factories: map[string]Factory{}}
	r.Register("file", csvFactory{codec: codec})
	return r
}

// Register adds or replaces the factory handling directive["IO"] == kind.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Reader resolves directives to a Reader.
func (r *Registry) Reader(directives map[string]string, arity, auxArity int) (Reader, error) {
	f, err := r.factory(directives)
	if err != nil {
		return nil, err
	}
	return f.Reader(directives, arity, auxArity)
}

// Writer resolves directives to a Writer.
func (r *Registry) Writer(directives map[string]string, arity, auxArity int) (Writer, error) {
	f, err := r.factory(directives)
	if err != nil {
		return nil, err
	}
	return f.Writer(directives, arity, auxArity)
}

func (r *Registry) factory(directives map[string]string) (Factory, error) {
	kind := directives["IO"]
	if kind == "" {
		kind = "file"
	}
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("ioregistry: no factory registered for IO kind %q", kind)
	}
	return f, nil
}

// csvFactory binds the "file" IO kind to a flat CSV file. Without a "types"
// directive every column is Symbol; with one, its comma-separated letters
// type the columns in order (e.g. "types"="s,s,i" for symbol,symbol,signed;
// i signed, u unsigned, f float, anything else symbol), and columns past
// the end of the list are Signed.
type csvFactory struct {
	codec domain.SymbolCodec
}

func (f csvFactory) columnTypes(directives map[string]string, total int) []domain.Type {
	types := make([]domain.Type, total)
	spec, ok := directives["types"]
	if !ok {
		for i := range types {
			types[i] = domain.Symbol
		}
		return types
	}
	i := 0
	for _, c := range spec {
		if i >= total {
			break
		}
		if c == ',' {
			continue
		}
		switch c {
		case 'i':
			types[i] = domain.Signed
		case 'u':
			types[i] = domain.Unsigned
		case 'f':
			types[i] = domain.Float
		default:
			types[i] = domain.Symbol
		}
		i++
	}
	return types
}

func (f csvFactory) Reader(directives map[string]string, arity, auxArity int) (Reader, error) {
	path, ok := directives["filename"]
	if !ok {
		return nil, fmt.Errorf("ioregistry: file reader requires a %q directive", "filename")
	}
	return &csvReader{path: path, total: arity + auxArity, types: f.columnTypes(directives, arity+auxArity), codec: f.codec}, nil
}

func (f csvFactory) Writer(directives map[string]string, arity, auxArity int) (Writer, error) {
	path, ok := directives["filename"]
	if !ok {
		return nil, fmt.Errorf("ioregistry: file writer requires a %q directive", "filename")
	}
	return &csvWriter{path: path, total: arity + auxArity, types: f.columnTypes(directives, arity+auxArity), codec: f.codec}, nil
}

type csvReader struct {
	path  string
	total int
	types []domain.Type
	codec domain.SymbolCodec
}

func (r *csvReader) Read() ([]index.Tuple, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("ioregistry: open %s: %w", r.path, err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ioregistry: read %s: %w", r.path, err)
	}

	tuples := make([]index.Tuple, 0, len(records))
	for _, rec := range records {
		if len(rec) != r.total {
			return nil, fmt.Errorf("ioregistry: %s: row has %d columns, want %d", r.path, len(rec), r.total)
		}
		t := make(index.Tuple, r.total)
		for i, cell := range rec {
			t[i] = parseCell(r.codec, cell, r.types[i])
		}
		tuples = append(tuples, t)
	}
	return tuples, nil
}

func parseCell(codec domain.SymbolCodec, cell string, t domain.Type) domain.Domain {
	switch t {
	case domain.Signed:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return domain.FromSigned(0)
		}
		return domain.FromSigned(v)
	case domain.Unsigned:
		v, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return domain.FromUnsigned(0)
		}
		return domain.FromUnsigned(v)
	case domain.Float:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return domain.FromFloat(0)
		}
		return domain.FromFloat(v)
	default:
		return codec.Encode(cell)
	}
}

func formatCell(codec domain.SymbolCodec, d domain.Domain, t domain.Type) string {
	switch t {
	case domain.Signed:
		return strconv.FormatInt(d.AsSigned(), 10)
	case domain.Unsigned:
		return strconv.FormatUint(d.AsUnsigned(), 10)
	case domain.Float:
		return strconv.FormatFloat(d.AsFloat(), 'g', -1, 64)
	default:
		return codec.Decode(d)
	}
}

type csvWriter struct {
	path  string
	total int
	types []domain.Type
	codec domain.SymbolCodec
}

func (w *csvWriter) Write(tuples []index.Tuple) error {
	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("ioregistry: create %s: %w", w.path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	for _, t := range tuples {
		row := make([]string, len(t))
		for i, d := range t {
			typ := domain.Symbol
			if i < len(w.types) {
				typ = w.types[i]
			}
			row[i] = formatCell(w.codec, d, typ)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("ioregistry: write %s: %w", w.path, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
