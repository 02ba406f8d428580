// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"sync"
	"sync/atomic"

	"github.com/ramengine/ramengine/index"
)

// chunkFactor oversubscribes a Parallel* tuple loop's partitions relative
// to numThreads, smoothing stragglers across uneven partitions.
const chunkFactor = 20

// runPartitions runs fn once per partition, each on its own cloned Context
// so tuple bindings and views never cross a goroutine boundary; relation
// mutations and profile counters are the only permitted cross-worker
// effects. It blocks until every partition has finished.
func (e *Engine) runPartitions(parts []index.Partition, ctxt *Context, fn func(worker *Context, p index.Partition)) {
	var wg sync.WaitGroup
	for _, p := range parts {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctxt.Clone(), p)
		}()
	}
	wg.Wait()
}

// runPartitionsUntilFound is runPartitions specialized for IfExists-family
// loops: each worker stops scanning its partition once it matches a tuple
// or sees that another worker already has, and only the first worker to
// flip found runs the nested operation, so the "exactly once" contract
// holds under fan-out.
func (e *Engine) runPartitionsUntilFound(parts []index.Partition, ctxt *Context, match func(worker *Context, t index.Tuple) bool, onFound func(worker *Context, t index.Tuple)) {
	var found int32
	var wg sync.WaitGroup
	for _, p := range parts {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := ctxt.Clone()
			p.Scan(func(t index.Tuple) bool {
				if atomic.LoadInt32(&found) != 0 {
					return false
				}
				if !match(w, t) {
					return true
				}
				if atomic.CompareAndSwapInt32(&found, 0, 1) {
					onFound(w, t)
				}
				return false
			})
		}()
	}
	wg.Wait()
}
