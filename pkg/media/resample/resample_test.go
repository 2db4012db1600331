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

package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineInput(n int, rate float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(10000 * math.Sin(2*math.Pi*220*float64(i)/rate))
	}
	return out
}

func TestNewRejectsZeroRate(t *testing.T) {
	_, err := New(0, 8000, nil)
	require.Error(t, err)
	_, err = New(48000, 0, nil)
	require.Error(t, err)
}

func TestResampleEmptyInputReturnsNilWithoutAdvancingPhase(t *testing.T) {
	r, err := New(48000, 8000, nil)
	require.NoError(t, err)
	require.Nil(t, r.Resample(nil))
	require.Zero(t, r.position)
}

func TestResampleSameRateCopiesInput(t *testing.T) {
	r, err := New(8000, 8000, nil)
	require.NoError(t, err)
	in := []int16{1, 2, 3, 4}
	out := r.Resample(in)
	require.Equal(t, in, out)
}

func TestDownsampleOutputCountWithinRoundingBound(t *testing.T) {
	r, err := New(48000, 8000, nil)
	require.NoError(t, err)
	in := sineInput(960, 48000) // 20ms at 48kHz
	out := r.Resample(in)
	ratio := 48000.0 / 8000.0
	want := int(math.Round(float64(len(in)) / ratio))
	require.LessOrEqual(t, absInt(len(out)-want), 1)
}

func TestUpsampleOutputCountWithinRoundingBound(t *testing.T) {
	r, err := New(8000, 48000, nil)
	require.NoError(t, err)
	in := sineInput(160, 8000) // 20ms at 8kHz
	out := r.Resample(in)
	ratio := 8000.0 / 48000.0
	want := int(math.Round(float64(len(in)) / ratio))
	require.LessOrEqual(t, absInt(len(out)-want), 1)
}

func TestCrossChunkPhaseContinuityProducesStableTotalLength(t *testing.T) {
	r, err := New(48000, 8000, nil)
	require.NoError(t, err)

	total := 0
	chunks := 50
	samplesPerChunk := 960
	for c := 0; c < chunks; c++ {
		in := sineInput(samplesPerChunk, 48000)
		total += len(r.Resample(in))
	}

	ratio := 48000.0 / 8000.0
	want := int(math.Round(float64(chunks*samplesPerChunk) / ratio))
	require.LessOrEqual(t, absInt(total-want), 1)
}

func TestResetClearsPhase(t *testing.T) {
	r, err := New(48000, 8000, nil)
	require.NoError(t, err)
	r.Resample(sineInput(1000, 48000))
	require.NotZero(t, r.position)
	r.Reset()
	require.Zero(t, r.position)
	require.Zero(t, r.lastSample)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
