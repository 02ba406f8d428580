// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

//go:build !linux || !cgo
// +build !linux !cgo

package functor

import "github.com/ramengine/ramengine/domain"

// ffiCall is the stand-in for builds that are not Linux or have cgo
// disabled: the libffi/dlopen bridge in ffi_linux.go is built only for
// Linux with cgo enabled.
type ffiCall struct{}

func (c *ffiCall) invoke([]domain.Domain, []domain.Type) domain.Domain { return domain.Nil }

func resolveFFI(name string, argc int, dirs []string) (*ffiCall, bool) {
	return nil, false
}
