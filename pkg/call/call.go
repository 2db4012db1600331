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

// Package call wires one active call's media path together: device
// audio at DeviceSampleRate, resampled to/from the narrowband 8kHz G.711
// rate, encoded/decoded, and carried over an RTP session.
package call

import (
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/sirupsen/logrus"

	"github.com/DieselFuel147/platypus-phone/pkg/audio"
	"github.com/DieselFuel147/platypus-phone/pkg/media/g711"
	"github.com/DieselFuel147/platypus-phone/pkg/media/resample"
	"github.com/DieselFuel147/platypus-phone/pkg/rtp"
)

const (
	// NarrowbandRate is the fixed G.711 sample rate.
	NarrowbandRate = 8000
	// DeviceSampleRate is the rate this phone asks malgo to open capture
	// and playback devices at; the call's Resamplers bridge it to/from
	// NarrowbandRate regardless of what the hardware natively supports.
	DeviceSampleRate = 48000
	// frameSamples is one 20ms G.711 frame.
	frameSamples  = 160
	frameInterval = 20 * time.Millisecond
)

// Call owns the send and receive loops for one active RTP session,
// encoding captured audio outbound and decoding received audio to
// playback.
type Call struct {
	log      *logrus.Entry
	rtp      *rtp.Session
	codec    g711.Codec
	capture  *audio.Capture
	playback *audio.Playback
	toNarrow *resample.Resampler
	toDevice *resample.Resampler

	closing core.Fuse
	wg      sync.WaitGroup
}

// New builds a Call over an already-open RTP session and already-open
// audio devices. The caller owns opening and closing the devices; Call
// only starts and stops the loops that move samples through them.
func New(rtpSession *rtp.Session, codec g711.Codec, capture *audio.Capture, playback *audio.Playback, log *logrus.Entry) (*Call, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	toNarrow, err := resample.New(capture.SampleRate(), NarrowbandRate, log)
	if err != nil {
		return nil, err
	}
	toDevice, err := resample.New(NarrowbandRate, playback.SampleRate(), log)
	if err != nil {
		return nil, err
	}
	return &Call{
		log:      log,
		rtp:      rtpSession,
		codec:    codec,
		capture:  capture,
		playback: playback,
		toNarrow: toNarrow,
		toDevice: toDevice,
	}, nil
}

// Start launches the send and receive loops in the background.
func (c *Call) Start() {
	c.wg.Add(2)
	go c.sendLoop()
	go c.receiveLoop()
}

// sendLoop runs every 20ms: drain whatever the capture device produced
// since the last tick, resample it to 8kHz, and ship complete frames.
func (c *Call) sendLoop() {
	defer c.wg.Done()

	raw := make([]int16, frameSamples*DeviceSampleRate/NarrowbandRate*2)
	var pending []int16
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	stopped := c.closing.Watch()

	for {
		select {
		case <-stopped:
			return
		case <-ticker.C:
		}

		n, err := c.capture.Read(raw)
		if err != nil {
			continue
		}
		pending = append(pending, c.toNarrow.Resample(raw[:n])...)

		for len(pending) >= frameSamples {
			frame := pending[:frameSamples]
			pending = pending[frameSamples:]

			payload := make([]byte, frameSamples)
			c.codec.EncodeTo(payload, frame)
			if err := c.rtp.SendPayload(payload); err != nil {
				c.log.WithError(err).Debug("rtp send failed")
			}
		}
	}
}

// receiveLoop blocks on the RTP socket and plays back whatever arrives;
// it exits when the session is closed, which unblocks ReceivePacket.
func (c *Call) receiveLoop() {
	defer c.wg.Done()
	for {
		p, err := c.rtp.ReceivePacket()
		if err != nil {
			return
		}
		pcm := make([]int16, len(p.Payload))
		c.codec.DecodeTo(pcm, p.Payload)
		c.playback.Write(c.toDevice.Resample(pcm))
	}
}

// Stop closes the RTP session (unblocking the receive loop) and waits
// for both loops to exit. Safe to call more than once.
func (c *Call) Stop() {
	c.closing.Once(func() {
		_ = c.rtp.Close()
	})
	c.wg.Wait()
}
