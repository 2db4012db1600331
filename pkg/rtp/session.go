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

package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"

	"github.com/frostbyte73/core"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	coreerrors "github.com/DieselFuel147/platypus-phone/pkg/errors"
)

// samplesPerPacket is the narrowband 20ms packetization cadence: 160
// samples at 8kHz.
const samplesPerPacket = 160

// Config describes how to bind and address a Session.
type Config struct {
	// LocalPort is the UDP port to bind. Zero picks an ephemeral port.
	LocalPort int
	// RemoteAddr is the negotiated remote media endpoint.
	RemoteAddr *net.UDPAddr
	// PayloadType is 0 (mu-law) or 8 (A-law).
	PayloadType uint8
	Log         *logrus.Entry
}

// Session owns one UDP socket carrying RTP in both directions for the
// lifetime of a call.
type Session struct {
	log    *logrus.Entry
	conn   *net.UDPConn
	remote *net.UDPAddr
	pt     uint8
	ssrc   uint32

	mu  sync.Mutex
	seq uint16
	ts  uint32

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64

	closing core.Fuse
}

// NewSession binds the local socket and initializes SSRC/sequence/timestamp
// to random starting values. RemoteAddr may be nil when the local port
// must be advertised (in an SDP offer) before the remote endpoint is
// known; SetRemote establishes it once the answer arrives, and
// SendPayload/ReceivePacket reject use until then.
func NewSession(cfg Config) (*Session, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.LocalPort})
	if err != nil {
		return nil, coreerrors.Media("bind local socket", pkgerrors.WithStack(err))
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Session{
		log:    log,
		conn:   conn,
		remote: cfg.RemoteAddr,
		pt:     cfg.PayloadType,
		ssrc:   randUint32(),
		seq:    randUint16(),
		ts:     randUint32(),
	}
	return s, nil
}

func randUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func randUint16() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// LocalPort returns the bound local UDP port; the SDP offer this session
// advertises must reuse this value.
func (s *Session) LocalPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// SetRemote establishes or changes the remote endpoint this session
// sends to and accepts packets from.
func (s *Session) SetRemote(addr *net.UDPAddr) {
	s.mu.Lock()
	s.remote = addr
	s.mu.Unlock()
}

func (s *Session) remoteAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// SentCount, ReceivedCount and DroppedCount are observability counters
// tracking packets sent, received, and discarded.
func (s *Session) SentCount() uint64     { return s.sent.Load() }
func (s *Session) ReceivedCount() uint64 { return s.received.Load() }
func (s *Session) DroppedCount() uint64  { return s.dropped.Load() }

// SendPayload builds and sends one RTP packet carrying payload (expected
// to be one 20ms, samplesPerPacket-sample frame already encoded), then
// advances sequence by 1 and timestamp by samplesPerPacket.
func (s *Session) SendPayload(payload []byte) error {
	remote := s.remoteAddr()
	if remote == nil {
		return coreerrors.Media("send rtp packet", pkgerrors.New("remote endpoint not established"))
	}

	s.mu.Lock()
	seq, ts := s.seq, s.ts
	s.seq++
	s.ts += samplesPerPacket
	s.mu.Unlock()

	p := NewPacket(seq, ts, s.ssrc, s.pt, payload)
	data, err := Marshal(p)
	if err != nil {
		return coreerrors.Media("marshal rtp packet", pkgerrors.WithStack(err))
	}
	if _, err := s.conn.WriteToUDP(data, remote); err != nil {
		return coreerrors.Media("send rtp packet", pkgerrors.WithStack(err))
	}
	s.sent.Add(1)
	return nil
}

// ReceivePacket blocks for the next valid packet from the expected remote
// endpoint, silently discarding malformed packets and packets from any
// other sender. It returns an error only when the socket itself fails
// (including on Close).
func (s *Session) ReceivePacket() (*Packet, error) {
	buf := make([]byte, 1500)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return nil, coreerrors.Media("receive rtp packet", pkgerrors.WithStack(err))
		}
		remote := s.remoteAddr()
		if remote == nil || !from.IP.Equal(remote.IP) || from.Port != remote.Port {
			s.dropped.Add(1)
			continue
		}
		p, err := Unmarshal(buf[:n])
		if err != nil {
			s.log.WithError(err).Debug("discarding malformed rtp packet")
			s.dropped.Add(1)
			continue
		}
		s.received.Add(1)
		return p, nil
	}
}

// Close tears down the socket. Safe to call more than once and from any
// goroutine; concurrent ReceivePacket calls unblock with an error.
func (s *Session) Close() error {
	s.closing.Once(func() {
		_ = s.conn.Close()
	})
	return nil
}
