// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ioregistry

import (
	"path/filepath"
	"testing"

	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
	"github.com/ramengine/ramengine/symbol"
)

func TestFileWriterThenReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edge.csv")

	codec := symbol.New()
	reg := New(codec)

	directives := map[string]string{"filename": path, "types": "s,i"}
	w, err := reg.Writer(directives, 2, 0)
	if err != nil {
		t.Fatalf("Writer: %v", err)
	}
	a := codec.Encode("a")
	rows := []index.Tuple{
		{a, domain.FromSigned(1)},
		{a, domain.FromSigned(2)},
	}
	if err := w.Write(rows); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := reg.Reader(directives, 2, 0)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read() returned %d rows, want 2", len(got))
	}
	if codec.Decode(got[0][0]) != "a" {
		t.Errorf("row0 col0 = %q, want a", codec.Decode(got[0][0]))
	}
	if got[1][1].AsSigned() != 2 {
		t.Errorf("row1 col1 = %d, want 2", got[1][1].AsSigned())
	}
}

func TestReaderMissingFilenameDirectiveErrors(t *testing.T) {
	reg := New(symbol.New())
	if _, err := reg.Reader(map[string]string{}, 1, 0); err == nil {
		t.Error("Reader without filename directive returned nil error")
	}
}

func TestUnknownIOKindErrors(t *testing.T) {
	reg := New(symbol.New())
	if _, err := reg.Reader(map[string]string{"IO": "s3", "filename": "x"}, 1, 0); err == nil {
		t.Error("Reader with unregistered IO kind returned nil error")
	}
}

// memoryFactory is a minimal test-only Factory implementation, exercising
// the Register extension point the way an out-of-process data source would.
type memoryFactory struct{}

func (memoryFactory) Reader(map[string]string, int, int) (Reader, error) {
	return memoryReader{}, nil
}

func (memoryFactory) Writer(map[string]string, int, int) (Writer, error) {
	return memoryWriter{}, nil
}

type memoryReader struct{}

func (memoryReader) Read() ([]index.Tuple, error) {
	return []index.Tuple{{domain.FromSigned(1)}}, nil
}

type memoryWriter struct{}

func (memoryWriter) Write([]index.Tuple) error { return nil }

func TestRegisterCustomFactory(t *testing.T) {
	reg := New(symbol.New())
	reg.Register("memory", memoryFactory{})
	r, err := reg.Reader(map[string]string{"IO": "memory"}, 1, 0)
	if err != nil {
		t.Fatalf("Reader(memory): %v", err)
	}
	got, err := r.Read()
	if err != nil || len(got) != 1 {
		t.Errorf("memory Reader.Read() = %v, %v, want one tuple", got, err)
	}
}

func TestDefaultColumnTypesAreSymbol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sym.csv")
	codec := symbol.New()
	reg := New(codec)

	directives := map[string]string{"filename": path}
	w, err := reg.Writer(directives, 1, 0)
	if err != nil {
		t.Fatalf("Writer: %v", err)
	}
	h := codec.Encode("hello")
	if err := w.Write([]index.Tuple{{h}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := reg.Reader(directives, 1, 0)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if codec.Decode(got[0][0]) != "hello" {
		t.Errorf("decoded = %q, want hello", codec.Decode(got[0][0]))
	}
}
