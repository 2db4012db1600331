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

// Package resample implements a stateful linear-interpolation sample
// rate converter for mono 16-bit PCM, used on both the capture path
// (device rate to 8kHz) and the playback path (8kHz to device rate).
package resample

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Resampler converts one chunk of mono int16 PCM at a time, carrying a
// fractional input position across calls so consecutive chunks produce
// continuous audio rather than restarting phase at every call.
type Resampler struct {
	inputRate  uint32
	outputRate uint32
	ratio      float64 // inputRate/outputRate; >1 downsamples, <1 upsamples
	// position is the next output's fractional input index plus one:
	// lastSample sits at index -1 of each chunk, so 0 means the next
	// output starts on lastSample.
	position   float64
	lastSample int16
	log        *logrus.Entry
}

// New returns a Resampler converting inputRate to outputRate. Rates of
// zero are rejected.
func New(inputRate, outputRate uint32, log *logrus.Entry) (*Resampler, error) {
	if inputRate == 0 || outputRate == 0 {
		return nil, &rateError{inputRate, outputRate}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
		log:        log,
	}, nil
}

type rateError struct{ in, out uint32 }

func (e *rateError) Error() string {
	return fmt.Sprintf("resample: rates must be non-zero, got in=%d out=%d", e.in, e.out)
}

// Resample converts input to the output rate, advancing the internal
// phase so the next call picks up exactly where this one left off.
// Zero-length input returns nil without touching the phase.
func (r *Resampler) Resample(input []int16) []int16 {
	n := len(input)
	if n == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		out := make([]int16, n)
		copy(out, input)
		r.lastSample = input[n-1]
		return out
	}

	estimate := int(float64(n)/r.ratio) + 2
	out := make([]int16, 0, estimate)

	k := 0
	for {
		pos := r.position - 1 + r.ratio*float64(k)
		i := int(math.Floor(pos))
		if i >= n-1 {
			break
		}
		f := pos - float64(i)

		var x0, x1 int16
		if i < 0 {
			x0 = r.lastSample
			x1 = input[0]
		} else {
			x0 = input[i]
			x1 = input[i+1]
		}
		out = append(out, lerp(x0, x1, f))
		k++
	}

	r.position = r.position + r.ratio*float64(k) - float64(n)
	r.lastSample = input[n-1]

	r.log.WithFields(logrus.Fields{
		"input_rate":  r.inputRate,
		"output_rate": r.outputRate,
		"in_samples":  n,
		"out_samples": len(out),
	}).Trace("resampled chunk")
	return out
}

func lerp(a, b int16, f float64) int16 {
	v := float64(a) + (float64(b)-float64(a))*f
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Reset drops carried phase and boundary-sample state, for use when a
// stream discontinuity (device restart, call re-answer) makes carrying
// stale phase across the gap incorrect.
func (r *Resampler) Reset() {
	r.position = 0
	r.lastSample = 0
}
