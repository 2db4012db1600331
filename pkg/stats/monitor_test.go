// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisteredRoundTrips(t *testing.T) {
	m := NewMonitor(nil)
	require.False(t, m.Registered())
	m.SetRegistered(true)
	require.True(t, m.Registered())
}

func TestCallMonitorTracksActiveCountAndRTPTotals(t *testing.T) {
	m := NewMonitor(nil)
	require.EqualValues(t, 0, m.ActiveCalls())

	c := m.NewCall("123")
	c.Start()
	require.EqualValues(t, 1, m.ActiveCalls())

	d := c.End(10, 12)
	require.True(t, d >= 0)
	require.EqualValues(t, 0, m.ActiveCalls())
	require.EqualValues(t, 10, m.TotalRTPSent())
	require.EqualValues(t, 12, m.TotalRTPReceived())
}

func TestCallMonitorStartAndEndAreIdempotent(t *testing.T) {
	m := NewMonitor(nil)
	c := m.NewCall("123")
	c.Start()
	c.Start()
	require.EqualValues(t, 1, m.ActiveCalls())

	c.End(0, 0)
	c.End(0, 0)
	require.EqualValues(t, 0, m.ActiveCalls())
}
