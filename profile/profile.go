// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package profile contains helpers for performance metric management
// inside the engine: a Sink of timers, histograms, and counters keyed by
// the engine's scope strings (e.g. "@time;starttime",
// "@relation-reads;<relationName>").
package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Well-known scope-key prefixes the engine emits against.
const (
	ScopeTime                     = "@time"
	ScopeRelationReads            = "@relation-reads"
	ScopeRecursiveEstimateJoin    = "@recursive-estimate-join-size"
	ScopeNonRecursiveEstimateJoin = "@non-recursive-estimate-join-size"
	ScopeRuleFrequency            = "@rule-frequency"
)

// Key joins a scope prefix and an argument into the "prefix;arg" form the
// engine's profile scope strings use.
func Key(scope, arg string) string {
	if arg == "" {
		return scope
	}
	return scope + ";" + arg
}

// Sink defines the interface for a collection of performance metrics kept
// over the lifetime of one engine run.
type Sink interface {
	Timer(key string) Timer
	Histogram(key string) Histogram
	Counter(key string) Counter
	All() map[string]any
	Clear()
	json.Marshaler
}

type sink struct {
	mtx        sync.Mutex
	timers     map[string]Timer
	histograms map[string]Histogram
	counters   map[string]Counter
}

// New returns a new, empty Sink.
func New() Sink {
	return &sink{
		timers:     map[string]Timer{},
		histograms: map[string]Histogram{},
		counters:   map[string]Counter{},
	}
}

// NoOp returns a Sink that records nothing and costs nothing, used when
// the engine runs with profiling disabled.
func NoOp() Sink {
	return noOpSinkInstance
}

type entry struct {
	Key   string
	Value any
}

func (s *sink) String() string {
	all := s.All()
	sorted := make([]entry, 0, len(all))
	for k, v := range all {
		sorted = append(sorted, entry{Key: k, Value: v})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	buf := make([]string, len(sorted))
	for i := range sorted {
		buf[i] = fmt.Sprintf("%v:%v", sorted[i].Key, sorted[i].Value)
	}
	return strings.Join(buf, " ")
}

func (s *sink) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}

func (s *sink) Timer(key string) Timer {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t, ok := s.timers[key]
	if !ok {
		t = &timer{}
		s.timers[key] = t
	}
	return t
}

func (s *sink) Histogram(key string) Histogram {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	h, ok := s.histograms[key]
	if !ok {
		h = newHistogram()
		s.histograms[key] = h
	}
	return h
}

func (s *sink) Counter(key string) Counter {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	c, ok := s.counters[key]
	if !ok {
		c = &counter{}
		s.counters[key] = c
	}
	return c
}

func (s *sink) All() map[string]any {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	result := make(map[string]any, len(s.timers)+len(s.histograms)+len(s.counters))
	for k, t := range s.timers {
		result["timer_"+k+"_ns"] = t.Value()
	}
	for k, h := range s.histograms {
		result["histogram_"+k] = h.Value()
	}
	for k, c := range s.counters {
		result["counter_"+k] = c.Value()
	}
	return result
}

func (s *sink) Clear() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.timers = map[string]Timer{}
	s.histograms = map[string]Histogram{}
	s.counters = map[string]Counter{}
}

// Timer is a restartable timer that accumulates elapsed time across
// Start/Stop pairs, used to time each rule version's total contribution
// to a run.
type Timer interface {
	Value() any
	Int64() int64
	Start()
	Stop() int64
}

type timer struct {
	mtx   sync.Mutex
	start time.Time
	value int64
}

func (t *timer) Start() {
	t.mtx.Lock()
	t.start = time.Now()
	t.mtx.Unlock()
}

func (t *timer) Stop() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	var delta int64
	if !t.start.IsZero() {
		delta = time.Since(t.start).Nanoseconds()
		t.value += delta
		t.start = time.Time{}
	}
	return delta
}

func (t *timer) Value() any   { return t.Int64() }
func (t *timer) Int64() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.value
}

// Histogram carries a distribution of relation size samples across
// iterations (used for estimate-join-size scopes).
type Histogram interface {
	Value() any
	Update(int64)
}

type histogram struct {
	hist gometrics.Histogram
}

func newHistogram() Histogram {
	sample := gometrics.NewExpDecaySample(1028, 0.015)
	return &histogram{hist: gometrics.NewHistogram(sample)}
}

func (h *histogram) Update(v int64) { h.hist.Update(v) }

func (h *histogram) Value() any {
	snap := h.hist.Snapshot()
	pct := snap.Percentiles([]float64{0.5, 0.9, 0.99})
	return map[string]any{
		"count":  snap.Count(),
		"min":    snap.Min(),
		"max":    snap.Max(),
		"mean":   snap.Mean(),
		"median": pct[0],
		"90%":    pct[1],
		"99%":    pct[2],
	}
}

// Counter is a monotonic increasing counter, used for relation-read and
// rule-frequency scopes.
type Counter interface {
	Value() any
	Incr()
	Add(n uint64)
}

type counter struct{ c uint64 }

func (c *counter) Incr()         { atomic.AddUint64(&c.c, 1) }
func (c *counter) Add(n uint64)  { atomic.AddUint64(&c.c, n) }
func (c *counter) Value() any    { return atomic.LoadUint64(&c.c) }

type noOpSink struct{}
type noOpTimer struct{}
type noOpHistogram struct{}
type noOpCounter struct{}

var (
	noOpSinkInstance      = &noOpSink{}
	noOpTimerInstance     = &noOpTimer{}
	noOpHistogramInstance = &noOpHistogram{}
	noOpCounterInstance   = &noOpCounter{}
)

func (*noOpSink) Timer(string) Timer         { return noOpTimerInstance }
func (*noOpSink) Histogram(string) Histogram { return noOpHistogramInstance }
func (*noOpSink) Counter(string) Counter     { return noOpCounterInstance }
func (*noOpSink) All() map[string]any        { return nil }
func (*noOpSink) Clear()                     {}
func (*noOpSink) MarshalJSON() ([]byte, error) {
	return []byte(`{}`), nil
}

func (*noOpTimer) Start()       {}
func (*noOpTimer) Stop() int64  { return 0 }
func (*noOpTimer) Value() any   { return 0 }
func (*noOpTimer) Int64() int64 { return 0 }

func (*noOpHistogram) Update(int64) {}
func (*noOpHistogram) Value() any   { return nil }

func (*noOpCounter) Incr()       {}
func (*noOpCounter) Add(uint64)  {}
func (*noOpCounter) Value() any  { return 0 }
