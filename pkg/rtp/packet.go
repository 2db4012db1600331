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

// Package rtp implements RFC 3550 packet framing and a minimal two-way
// media session on top of a single UDP socket.
package rtp

import (
	"fmt"

	"github.com/pion/rtp"
)

// Packet is the RFC 3550 fixed header plus payload. The wire layout is
// delegated to pion/rtp, which already implements the big-endian bit
// packing this needs; this type exists so callers of this module never
// import pion/rtp directly.
type Packet = rtp.Packet

// NewPacket builds an outbound packet with V=2, P=0, X=0, CC=0 and the
// given sequence, timestamp, ssrc, payload type and payload.
func NewPacket(seq uint16, ts uint32, ssrc uint32, pt uint8, payload []byte) *Packet {
	return &Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
}

// Marshal serializes p to its wire form.
func Marshal(p *Packet) ([]byte, error) {
	return p.Marshal()
}

// Unmarshal parses b into a Packet, validating the minimum header length
// and version. Malformed input is reported as an error so callers can
// discard it rather than propagate a zero-value packet.
func Unmarshal(b []byte) (*Packet, error) {
	if len(b) < 12 {
		return nil, fmt.Errorf("rtp: packet too short: %d bytes", len(b))
	}
	if v := b[0] >> 6; v != 2 {
		return nil, fmt.Errorf("rtp: unsupported version %d", v)
	}
	p := new(Packet)
	if err := p.Unmarshal(b); err != nil {
		return nil, fmt.Errorf("rtp: %w", err)
	}
	return p, nil
}
