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

// Package stats tracks the small set of counters the control surface
// needs for diagnostics: registration state, active call count and RTP
// packet counts. There is no network exporter here — this module never
// runs a server, so there is nothing for a scrape endpoint to serve.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor is the process-wide counter set for one softphone instance.
type Monitor struct {
	log *logrus.Entry

	registered  atomic.Bool
	callsActive atomic.Int64
	rtpSent     atomic.Uint64
	rtpReceived atomic.Uint64
}

// NewMonitor returns a Monitor that logs through log (or a default
// standalone entry when log is nil).
func NewMonitor(log *logrus.Entry) *Monitor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{log: log}
}

// SetRegistered records the current registration state.
func (m *Monitor) SetRegistered(v bool) {
	m.registered.Store(v)
}

// Registered reports the current registration state.
func (m *Monitor) Registered() bool {
	return m.registered.Load()
}

// CallStarted and CallEnded track the single active call this phone can
// hold at a time.
func (m *Monitor) CallStarted() {
	n := m.callsActive.Add(1)
	m.log.WithField("calls_active", n).Debug("call started")
}

func (m *Monitor) CallEnded() {
	n := m.callsActive.Add(-1)
	m.log.WithField("calls_active", n).Debug("call ended")
}

// ActiveCalls returns the current active call count.
func (m *Monitor) ActiveCalls() int64 {
	return m.callsActive.Load()
}

// RTPSent and RTPReceived accumulate packet counts across the lifetime
// of the process; CallMonitor.End feeds them when each call ends.
func (m *Monitor) RTPSent(n uint64)     { m.rtpSent.Add(n) }
func (m *Monitor) RTPReceived(n uint64) { m.rtpReceived.Add(n) }

// TotalRTPSent and TotalRTPReceived report the running totals.
func (m *Monitor) TotalRTPSent() uint64     { return m.rtpSent.Load() }
func (m *Monitor) TotalRTPReceived() uint64 { return m.rtpReceived.Load() }

// NewCall returns a per-call tracker scoped to one dialog's lifetime.
func (m *Monitor) NewCall(remoteNumber string) *CallMonitor {
	return &CallMonitor{m: m, remoteNumber: remoteNumber}
}

// CallMonitor tracks one call's duration and RTP traffic, reporting
// totals back into the parent Monitor when the call ends.
type CallMonitor struct {
	m            *Monitor
	remoteNumber string
	start        time.Time
	started      atomic.Bool
}

// RemoteNumber returns the number this call was placed to.
func (c *CallMonitor) RemoteNumber() string { return c.remoteNumber }

// StartedAt returns the time Start began the duration timer.
func (c *CallMonitor) StartedAt() time.Time { return c.start }

// Start marks the call as active and begins its duration timer.
func (c *CallMonitor) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.start = time.Now()
	c.m.CallStarted()
}

// End marks the call as finished and folds its RTP counts into the
// parent Monitor's running totals.
func (c *CallMonitor) End(sent, received uint64) time.Duration {
	if !c.started.CompareAndSwap(true, false) {
		return 0
	}
	c.m.RTPSent(sent)
	c.m.RTPReceived(received)
	c.m.CallEnded()
	return time.Since(c.start)
}
