// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package symbol implements the concrete default SymbolTable interning
// service: a concurrency-safe bidirectional map between strings and Domain
// handles.
package symbol

import (
	"sync"

	"github.com/ramengine/ramengine/domain"
)

// Table interns strings to stable Domain handles and back. The zero value
// is not usable; construct with New.
type Table struct {
	mu      sync.RWMutex
	strToID map[string]domain.Domain
	idToStr []string
}

// New returns an empty Table. Handle 0 is reserved by convention for the
// empty string so callers that never intern anything still decode cleanly.
func New() *Table {
	t := &Table{
		strToID: map[string]domain.Domain{},
	}
	t.idToStr = append(t.idToStr, "")
	t.strToID[""] = 0
	return t
}

// Encode interns s, returning a Domain stable for the lifetime of the
// table. Repeated calls with the same string return the same handle.
func (t *Table) Encode(s string) domain.Domain {
	t.mu.RLock()
	if id, ok := t.strToID[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.strToID[s]; ok {
		return id
	}
	id := domain.Domain(len(t.idToStr))
	t.idToStr = append(t.idToStr, s)
	t.strToID[s] = id
	return id
}

// Decode returns the string interned under handle d. It panics if d was
// never returned by Encode on this table; the engine treats a bad symbol
// handle as an internal-consistency bug, not a recoverable condition.
func (t *Table) Decode(d domain.Domain) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := int(d)
	if idx < 0 || idx >= len(t.idToStr) {
		panic("symbol: decode of unknown handle")
	}
	return t.idToStr[idx]
}

// WeakContains reports whether s has already been interned, without
// interning it as a side effect.
func (t *Table) WeakContains(s string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.strToID[s]
	return ok
}

// Len returns the number of distinct interned strings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.idToStr)
}
