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
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/DieselFuel147/platypus-phone/pkg/internal/ringbuf"
)

// captureBufferSeconds bounds how much unread audio Capture retains
// before the ring buffer starts dropping the oldest samples.
const captureBufferSeconds = 2

// Capture streams mono 16-bit PCM from an input device into a bounded,
// drop-oldest buffer that Read drains at the caller's own pace.
type Capture struct {
	log        *logrus.Entry
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32

	mu     sync.Mutex
	buf    *ringbuf.Buffer[int16]
	notify chan struct{}
}

// NewCapture opens deviceName (empty for the system default) for capture
// at sampleRate, the device's native rate; callers resample downstream
// rather than asking the device for 8kHz directly.
func NewCapture(deviceName string, sampleRate uint32, log *logrus.Entry) (*Capture, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	if deviceName != "" {
		id, err := findDeviceID(ctx, malgo.Capture, deviceName)
		if err != nil {
			ctx.Uninit()
			ctx.Free()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = unsafe.Pointer(id)
	}

	c := &Capture{
		log:        log,
		ctx:        ctx,
		sampleRate: sampleRate,
		buf:        ringbuf.New[int16](int(sampleRate) * captureBufferSeconds),
		notify:     make(chan struct{}, 1),
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: c.onData,
	})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	c.device = device
	return c, nil
}

func (c *Capture) onData(_ []byte, pInput []byte, framecount uint32) {
	samples := bytesToInt16(pInput, int(framecount))
	c.mu.Lock()
	_, _ = c.buf.Write(samples)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Start begins streaming from the device.
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("audio: start capture: %w", err)
	}
	return nil
}

// Stop halts streaming without releasing the device.
func (c *Capture) Stop() error {
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("audio: stop capture: %w", err)
	}
	return nil
}

// Close releases the device and its audio backend context.
func (c *Capture) Close() error {
	c.device.Uninit()
	err := c.ctx.Uninit()
	c.ctx.Free()
	return err
}

// Read drains up to len(p) samples, blocking until at least one sample
// is available.
func (c *Capture) Read(p []int16) (int, error) {
	for {
		if n := c.tryRead(p); n > 0 {
			return n, nil
		}
		<-c.notify
	}
}

// tryRead drains without blocking, returning 0 if nothing is buffered.
func (c *Capture) tryRead(p []int16) int {
	c.mu.Lock()
	n, _ := c.buf.Read(p)
	c.mu.Unlock()
	return n
}

// SampleRate returns the rate Capture was opened at.
func (c *Capture) SampleRate() uint32 { return c.sampleRate }

func bytesToInt16(b []byte, frames int) []int16 {
	out := make([]int16, frames)
	for i := 0; i < frames && i*2+1 < len(b); i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
