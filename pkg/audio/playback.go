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

// playbackBufferSeconds bounds how far playback can run ahead of what
// the far end has actually sent before older samples are dropped.
const playbackBufferSeconds = 2

// Playback streams mono 16-bit PCM queued by Write out to an output
// device, padding with silence whenever the queue underflows rather
// than blocking the device callback.
type Playback struct {
	log        *logrus.Entry
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32

	mu  sync.Mutex
	buf *ringbuf.Buffer[int16]
}

// NewPlayback opens deviceName (empty for the system default) for
// playback at sampleRate.
func NewPlayback(deviceName string, sampleRate uint32, log *logrus.Entry) (*Playback, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	if deviceName != "" {
		id, err := findDeviceID(ctx, malgo.Playback, deviceName)
		if err != nil {
			ctx.Uninit()
			ctx.Free()
			return nil, err
		}
		deviceConfig.Playback.DeviceID = unsafe.Pointer(id)
	}

	p := &Playback{
		log:        log,
		ctx:        ctx,
		sampleRate: sampleRate,
		buf:        ringbuf.New[int16](int(sampleRate) * playbackBufferSeconds),
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: p.onData,
	})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: init playback device: %w", err)
	}
	p.device = device
	return p, nil
}

func (p *Playback) onData(pOutput []byte, _ []byte, framecount uint32) {
	out := make([]int16, framecount)
	p.mu.Lock()
	n, _ := p.buf.Read(out)
	p.mu.Unlock()

	int16ToBytes(pOutput, out[:n])
	for i := n * 2; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// Write queues samples for playback, dropping the oldest queued audio
// if the buffer is already full.
func (p *Playback) Write(samples []int16) {
	p.mu.Lock()
	_, _ = p.buf.Write(samples)
	p.mu.Unlock()
}

// Queued reports how many samples are still waiting to be played.
func (p *Playback) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Len()
}

// Start begins streaming to the device.
func (p *Playback) Start() error {
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("audio: start playback: %w", err)
	}
	return nil
}

// Stop halts streaming without releasing the device.
func (p *Playback) Stop() error {
	if err := p.device.Stop(); err != nil {
		return fmt.Errorf("audio: stop playback: %w", err)
	}
	return nil
}

// Close releases the device and its audio backend context.
func (p *Playback) Close() error {
	p.device.Uninit()
	err := p.ctx.Uninit()
	p.ctx.Free()
	return err
}

// SampleRate returns the rate Playback was opened at.
func (p *Playback) SampleRate() uint32 { return p.sampleRate }

func int16ToBytes(dst []byte, src []int16) {
	for i, s := range src {
		if i*2+1 >= len(dst) {
			break
		}
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}
