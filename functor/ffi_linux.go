// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

//go:build linux && cgo
// +build linux,cgo

package functor

/*
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdlib.h>

static void* re_dlopen(const char* path) {
	return dlopen(path, RTLD_LAZY | RTLD_LOCAL);
}
static void* re_dlsym(void* h, const char* name) {
	dlerror();
	return dlsym(h, name);
}
static const char* re_dlerror(void) {
	return dlerror();
}
static ffi_cif* re_alloc_cif(void) {
	return (ffi_cif*)malloc(sizeof(ffi_cif));
}
static void re_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}
*/
import "C"

import (
	"fmt"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/ramengine/ramengine/diag"
	"github.com/ramengine/ramengine/domain"
)

// ffiCall is a resolved, call-ready binding to a dynamically loaded C
// function of uint64-sized arguments (as many as the argc it was bound
// with), each passed through
// ffi_type_uint64 and returning ffi_type_uint64 — the same bit pattern a
// Domain already carries, so no marshalling beyond the call boundary is
// needed. Wider C ABI shapes (structs, floats passed in XMM registers by
// value, variadics) are out of scope: functors operate purely on Domain
// words.
type ffiCall struct {
	mu  sync.Mutex
	cif *C.ffi_cif
	fn  unsafe.Pointer
}

func (c *ffiCall) invoke(args []domain.Domain, _ []domain.Type) domain.Domain {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(args)
	avalue := make([]unsafe.Pointer, n)
	values := make([]C.uint64_t, n)
	for i, a := range args {
		values[i] = C.uint64_t(uint64(a))
		avalue[i] = unsafe.Pointer(&values[i])
	}
	var ret C.uint64_t
	var avaluePtr *unsafe.Pointer
	if n > 0 {
		avaluePtr = &avalue[0]
	}
	C.re_call(c.cif, c.fn, unsafe.Pointer(&ret), avaluePtr)
	return domain.Domain(uint64(ret))
}

var (
	ffiMu      sync.Mutex
	ffiHandles = map[string]unsafe.Pointer{}
)

// resolveFFI searches dirs for a shared library exporting name and binds a
// libffi call descriptor for it at the given argument count. It mirrors
// the reference corpus's dlopen/ffi_prep_cif/dlsym sequence, reduced to
// the fixed uint64-in/uint64-out shape functors use.
func resolveFFI(name string, argc int, dirs []string) (*ffiCall, bool) {
	sym, ok := dlsymAny(name, dirs)
	if !ok {
		return nil, false
	}

	atypes := make([]*C.ffi_type, argc)
	for i := range atypes {
		atypes[i] = &C.ffi_type_uint64
	}
	cif := C.re_alloc_cif()
	var atypesPtr **C.ffi_type
	if argc > 0 {
		atypesPtr = &atypes[0]
	}
	status := C.ffi_prep_cif(cif, C.FFI_DEFAULT_ABI, C.uint(argc), &C.ffi_type_uint64, atypesPtr)
	if status != C.FFI_OK {
		diag.Global().Warnf("functor: ffi_prep_cif(%s) failed: status %d", name, int(status))
		return nil, false
	}
	return &ffiCall{cif: cif, fn: sym}, true
}

func dlsymAny(name string, dirs []string) (unsafe.Pointer, bool) {
	ffiMu.Lock()
	defer ffiMu.Unlock()

	for _, h := range ffiHandles {
		if sym, ok := dlsym(h, name); ok {
			return sym, true
		}
	}
	for _, dir := range dirs {
		matches, _ := filepath.Glob(filepath.Join(dir, "*.so"))
		for _, path := range matches {
			h, ok := ffiHandles[path]
			if !ok {
				var err error
				h, err = dlopen(path)
				if err != nil {
					diag.Global().Warnf("functor: %v", err)
					continue
				}
				ffiHandles[path] = h
			}
			if sym, ok := dlsym(h, name); ok {
				return sym, true
			}
		}
	}
	return nil, false
}

func dlopen(path string) (unsafe.Pointer, error) {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	h := C.re_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("functor: dlopen(%s): %s", path, dlerrorString())
	}
	return h, nil
}

func dlsym(h unsafe.Pointer, name string) (unsafe.Pointer, bool) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	p := C.re_dlsym(h, cs)
	if p == nil {
		return nil, false
	}
	return p, true
}

func dlerrorString() string {
	if e := C.re_dlerror(); e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}
