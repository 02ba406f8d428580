// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/ramengine/ramengine/domain"
	"github.com/ramengine/ramengine/index"
)

// Context is per-invocation evaluation state: everything a running shadow
// tree needs besides the Engine itself. A fresh Context is created for
// executeMain, for each executeSubroutine call, and for each worker of a
// Parallel* tuple loop (cloned from its parent so workers never share
// mutable state).
type Context struct {
	// tuples holds the tuple currently bound to each tuple-id, indexed
	// directly by id; grown lazily as new ids are bound.
	tuples []index.Tuple

	// views holds the active View for each view slot the enclosing
	// Generator assigned; nil until the owning Query creates it.
	views []*index.View

	// scratch collects SubroutineReturn's evaluated arguments.
	scratch []domain.Domain

	// vars holds Assign-bound variables by name.
	vars map[string]domain.Domain

	// args holds the subroutine's incoming argument vector, read by
	// SubroutineArgument.
	args []domain.Domain
}

// NewContext returns an empty Context sized for viewSlots views, with args
// as the subroutine argument vector (nil for the top-level program).
func NewContext(viewSlots int, args []domain.Domain) *Context {
	return &Context{
		views: make([]*index.View, viewSlots),
		vars:  map[string]domain.Domain{},
		args:  args,
	}
}

// Clone returns a fresh Context sharing this Context's args and a copy of
// its vars, but with independent tuple bindings and views — the per-worker
// isolation a Parallel* tuple loop needs.
func (c *Context) Clone() *Context {
	vars := make(map[string]domain.Domain, len(c.vars))
	for k, v := range c.vars {
		vars[k] = v
	}
	clone := &Context{
		tuples: make([]index.Tuple, len(c.tuples)),
		views:  make([]*index.View, len(c.views)),
		vars:   vars,
		args:   c.args,
	}
	copy(clone.tuples, c.tuples)
	copy(clone.views, c.views)
	return clone
}

func (c *Context) bind(tupleID int, t index.Tuple) {
	c.ensureTupleSlot(tupleID)
	c.tuples[tupleID] = t
}

func (c *Context) tuple(tupleID int) index.Tuple {
	if tupleID < 0 || tupleID >= len(c.tuples) {
		return nil
	}
	return c.tuples[tupleID]
}

func (c *Context) ensureTupleSlot(tupleID int) {
	if tupleID < len(c.tuples) {
		return
	}
	grown := make([]index.Tuple, tupleID+1)
	copy(grown, c.tuples)
	c.tuples = grown
}

func (c *Context) setView(slot int, v *index.View) {
	if slot < 0 {
		return
	}
	if slot >= len(c.views) {
		grown := make([]*index.View, slot+1)
		copy(grown, c.views)
		c.views = grown
	}
	c.views[slot] = v
}

func (c *Context) view(slot int) *index.View {
	if slot < 0 || slot >= len(c.views) {
		return nil
	}
	return c.views[slot]
}
