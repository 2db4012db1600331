// Copyright 2024 LiveKit, Inc.
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

package audio

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// MicrophoneTestResult summarizes one short capture used to verify a
// microphone is producing signal before a call is placed.
type MicrophoneTestResult struct {
	PeakAmplitude int16
	FrameCount    int
	Duration      time.Duration
}

// pollInterval is how often TestMicrophone checks for new samples while
// waiting out duration; it trades a little latency for not spinning.
const pollInterval = 10 * time.Millisecond

// TestMicrophone opens deviceName for capture at sampleRate, records
// for duration, and reports the loudest sample seen. A result whose
// PeakAmplitude is 0 indicates a muted or disconnected device.
func TestMicrophone(deviceName string, sampleRate uint32, duration time.Duration, log *logrus.Entry) (*MicrophoneTestResult, error) {
	c, err := NewCapture(deviceName, sampleRate, log)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.Start(); err != nil {
		return nil, err
	}
	defer c.Stop()

	result := &MicrophoneTestResult{}
	buf := make([]int16, sampleRate/10+1)
	start := time.Now()

	for time.Since(start) < duration {
		n := c.tryRead(buf)
		if n == 0 {
			time.Sleep(pollInterval)
			continue
		}
		result.FrameCount += n
		for _, s := range buf[:n] {
			if peak := absInt16(s); peak > result.PeakAmplitude {
				result.PeakAmplitude = peak
			}
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func absInt16(v int16) int16 {
	if v == math.MinInt16 {
		return math.MaxInt16
	}
	if v < 0 {
		return -v
	}
	return v
}
