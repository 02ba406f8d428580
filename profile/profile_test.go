// Copyright 2024 The Ramengine Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package profile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyJoinsScopeAndArg(t *testing.T) {
	require.Equal(t, "@relation-reads;edge", Key(ScopeRelationReads, "edge"))
	require.Equal(t, "@time", Key(ScopeTime, ""))
}

func TestTimerAccumulatesAcrossStartStop(t *testing.T) {
	s := New()
	tm := s.Timer("t")
	tm.Start()
	time.Sleep(time.Millisecond)
	d1 := tm.Stop()
	tm.Start()
	time.Sleep(time.Millisecond)
	d2 := tm.Stop()
	require.GreaterOrEqual(t, tm.Int64(), d1+d2-1, "allow for monotonic clock rounding")
	require.Greater(t, tm.Int64(), int64(0))
}

func TestTimerSameKeyIsShared(t *testing.T) {
	s := New()
	a := s.Timer("shared")
	b := s.Timer("shared")
	a.Start()
	a.Stop()
	require.Equal(t, a.Int64(), b.Int64(), "Timer(key) called twice should return the shared timer")
}

func TestCounterIncrAndAdd(t *testing.T) {
	s := New()
	c := s.Counter("c")
	c.Incr()
	c.Add(4)
	require.Equal(t, uint64(5), c.Value().(uint64))
}

func TestHistogramValueShape(t *testing.T) {
	s := New()
	h := s.Histogram("h")
	h.Update(10)
	h.Update(20)
	v, ok := h.Value().(map[string]any)
	require.True(t, ok, "Histogram.Value() should be a map[string]any, got %T", h.Value())
	require.Equal(t, int64(2), v["count"].(int64))
}

func TestAllAndClear(t *testing.T) {
	s := New()
	s.Counter("c").Incr()
	s.Timer("t")
	require.NotEmpty(t, s.All())
	s.Clear()
	require.Empty(t, s.All())
}

func TestSinkMarshalJSON(t *testing.T) {
	s := New()
	s.Counter("c").Add(3)
	out, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, float64(3), decoded["counter_c"].(float64))
}

func TestNoOpSinkRecordsNothing(t *testing.T) {
	s := NoOp()
	s.Counter("c").Incr()
	s.Timer("t").Start()
	s.Histogram("h").Update(1)
	require.Nil(t, s.All())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	require.Equal(t, "{}", string(out))
}
