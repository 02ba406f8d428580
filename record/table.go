// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package record implements the concrete default RecordTable interning
// service: it packs heterogeneous fixed-arity tuples into a single Domain
// handle and unpacks them back, so nested records can be carried through a
// single tuple cell.
package record

import (
	"strings"
	"sync"

	"github.com/ramengine/ramengine/domain"
)

// Table packs Domain tuples into handles and back. Handle 0 is reserved for
// the nil record reference; pack never returns 0 for a non-empty tuple.
type Table struct {
	mu        sync.RWMutex
	keyToID   map[string]domain.Domain
	idToTuple [][]domain.Domain
}

// New returns an empty Table.
func New() *Table {
	t := &Table{
		keyToID: map[string]domain.Domain{},
	}
	t.idToTuple = append(t.idToTuple, nil) // handle 0 == nil
	return t
}

func key(tuple []domain.Domain) string {
	var b strings.Builder
	for _, d := range tuple {
		b.WriteByte(byte(d))
		b.WriteByte(byte(d >> 8))
		b.WriteByte(byte(d >> 16))
		b.WriteByte(byte(d >> 24))
		b.WriteByte(byte(d >> 32))
		b.WriteByte(byte(d >> 40))
		b.WriteByte(byte(d >> 48))
		b.WriteByte(byte(d >> 56))
	}
	return b.String()
}

// Pack returns a nonzero handle for a distinct tuple, reusing handles for
// tuples already packed. The nil (empty) tuple always packs to handle 0.
func (t *Table) Pack(tuple []domain.Domain) domain.Domain {
	if len(tuple) == 0 {
		return domain.Nil
	}
	k := key(tuple)

	t.mu.RLock()
	if id, ok := t.keyToID[k]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.keyToID[k]; ok {
		return id
	}
	cpy := make([]domain.Domain, len(tuple))
	copy(cpy, tuple)
	id := domain.Domain(len(t.idToTuple))
	t.idToTuple = append(t.idToTuple, cpy)
	t.keyToID[k] = id
	return id
}

// Unpack returns the arity-A tuple stored under handle. Handle 0 unpacks to
// an all-Nil tuple of the requested arity.
func (t *Table) Unpack(handle domain.Domain, arity int) []domain.Domain {
	if handle == domain.Nil {
		return make([]domain.Domain, arity)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := int(handle)
	if idx < 0 || idx >= len(t.idToTuple) {
		panic("record: unpack of unknown handle")
	}
	tuple := t.idToTuple[idx]
	if len(tuple) != arity {
		panic("record: arity mismatch on unpack")
	}
	out := make([]domain.Domain, arity)
	copy(out, tuple)
	return out
}
