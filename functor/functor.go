// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package functor resolves and invokes user-defined operators: functions
// loaded from dynamically linked libraries and called by name from a RAM
// UserDefinedOperator node. A name registered in the Registry (stateless
// via RegisterDirect, stateful via RegisterStateful) goes through a direct
// Go function-value path at any arity; any other name falls back to the
// libffi-based bridge in ffi_linux.go.
package functor

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
)

// Fn is the calling convention for a stateless functor resolved to a
// direct Go function value: it receives its argument Domains plus the
// declared Type of each, and returns the result Domain.
type Fn func(args []domain.Domain, argTypes []domain.Type) domain.Domain

// StatefulFn additionally receives the active symbol/record codec so the
// functor body can decode/encode Symbol arguments itself.
type StatefulFn func(codec domain.SymbolCodec, args []domain.Domain, argTypes []domain.Type) domain.Domain

// Descriptor is the resolved, call-ready form of a UserDefinedOperator,
// produced once by a Dispatcher at shadow-generation time so the hot path
// never repeats name lookup or library resolution.
type Descriptor struct {
	Name      string
	Stateful  bool
	Direct    Fn
	Stateless StatefulFn
	// FFI is non-nil when the call must cross into the libffi bridge
	// (a name with no in-process registration that was found in a shared
	// library under the search path).
	FFI *ffiCall
}

// Call invokes the resolved functor.
func (d *Descriptor) Call(codec domain.SymbolCodec, args []domain.Domain, argTypes []domain.Type) domain.Domain {
	switch {
	case d.FFI != nil:
		return d.FFI.invoke(args, argTypes)
	case d.Stateful:
		return d.Stateless(codec, args, argTypes)
	default:
		return d.Direct(args, argTypes)
	}
}

// Dispatcher resolves a functor name (plus its static shape: stateful-ness
// and argument count) to a call-ready Descriptor.
type Dispatcher interface {
	Resolve(name string, stateful bool, argc int) *Descriptor
}

// Registry is the default Dispatcher: a name-keyed table of direct Go
// function values, consulted before falling back to a shared library
// found under the SetSearchPath directories through the libffi bridge.
type Registry struct {
	mu        sync.RWMutex
	direct    map[string]Fn
	stateless map[string]StatefulFn
	libDirs   []string
	libs      []string
}

// NewRegistry returns an empty Registry. Register built-ins with
// RegisterDirect/RegisterStateful before resolving RAM programs against it.
func NewRegistry() *Registry {
	return &Registry{
		direct:    map[string]Fn{},
		stateless: map[string]StatefulFn{},
	}
}

// RegisterDirect adds a stateless functor callable without the symbol
// table.
func (r *Registry) RegisterDirect(name string, fn Fn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[name] = fn
}

// RegisterStateful adds a functor that needs the symbol/record codec.
func (r *Registry) RegisterStateful(name string, fn StatefulFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateless[name] = fn
}

// SetSearchPath records the directories LoadLibrary searches, mirroring
// the engine's --library-dir configuration.
func (r *Registry) SetSearchPath(dirs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libDirs = dirs
}

// LoadLibrary opens a Go plugin (.so), returning an error if it cannot be
// opened, and records its path. Resolve does not look up symbols in the
// plugins opened here: a functor name resolves only through the
// in-process registrations or the libffi bridge. Go's plugin package only
// supports ELF targets.
func (r *Registry) LoadLibrary(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("functor: open library %s: %w", path, err)
	}
	r.mu.Lock()
	r.libs = append(r.libs, path)
	r.mu.Unlock()
	_ = p // the opened plugin is not consulted by Resolve
	return nil
}

// Resolve implements Dispatcher.
func (r *Registry) Resolve(name string, stateful bool, argc int) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if stateful {
		if fn, ok := r.stateless[name]; ok {
			return &Descriptor{Name: name, Stateful: true, Stateless: fn}
		}
	} else if fn, ok := r.direct[name]; ok {
		return &Descriptor{Name: name, Direct: fn}
	}

	if call, ok := resolveFFI(name, argc, r.libDirs); ok {
		return &Descriptor{Name: name, Stateful: stateful, FFI: call}
	}

	diag.Global().Warnf("functor: could not resolve %q (stateful=%v argc=%d); calls will return nil", name, stateful, argc)
	if stateful {
		return &Descriptor{Name: name, Stateful: true, Stateless: func(domain.SymbolCodec, []domain.Domain, []domain.Type) domain.Domain {
			return domain.Nil
		}}
	}
	return &Descriptor{Name: name, Direct: func([]domain.Domain, []domain.Type) domain.Domain {
		return domain.Nil
	}}
}
