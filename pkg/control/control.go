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

// Package control exposes the flat command surface a UI drives this
// phone through (init, register, call, hangup, unregister, device
// listing, microphone test) and the event stream it mirrors state
// transitions onto.
package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DieselFuel147/platypus-phone/pkg/audio"
	"github.com/DieselFuel147/platypus-phone/pkg/call"
	coreerrors "github.com/DieselFuel147/platypus-phone/pkg/errors"
	"github.com/DieselFuel147/platypus-phone/pkg/media/g711"
	"github.com/DieselFuel147/platypus-phone/pkg/rtp"
	"github.com/DieselFuel147/platypus-phone/pkg/sdp"
	"github.com/DieselFuel147/platypus-phone/pkg/settings"
	"github.com/DieselFuel147/platypus-phone/pkg/sip"
	"github.com/DieselFuel147/platypus-phone/pkg/stats"
)

// EventType names one kind of event this surface emits.
type EventType string

const (
	EventInitialized       EventType = "initialized"
	EventRegistrationState EventType = "registration_state"
	EventCallState         EventType = "call_state"
)

// Event is one state transition mirrored to the UI collaborator.
type Event struct {
	Type       EventType
	Registered *bool
	State      string
	Message    string
	Summary    *CallSummary
}

// CallSummary is attached to the call_state:TERMINATED event so a UI
// collaborator can show call history without the core persisting it.
type CallSummary struct {
	RemoteNumber string
	StartTime    time.Time
	EndTime      time.Time
	Reason       string
}

// registerExpires is the Expires value this phone requests; the server
// may return a shorter lease, which this module does not currently
// renegotiate (no re-REGISTER timer is implemented).
const registerExpires = 3600

// shutdownTimeout bounds the graceful unregister-before-exit sequence.
const shutdownTimeout = 5 * time.Second

// Surface is the process-wide control surface: one SIP account, at most
// one active call, wired to the settings store and stats monitor.
type Surface struct {
	log          *logrus.Entry
	engine       *sip.Engine
	mon          *stats.Monitor
	store        *settings.Store
	defaultCodec g711.Codec
	events       chan Event

	activeCall     *call.Call
	activeRTP      *rtp.Session
	activeCapture  *audio.Capture
	activePlayback *audio.Playback
	activeMonitor  *stats.CallMonitor
}

// New builds a Surface around an already-constructed Engine (bound to
// one SIP account and transport) and supporting collaborators.
// defaultCodec is the configured codec name ("pcmu" or "pcma") offered
// first in outbound SDP and used for the local RTP session until the
// answer's codec is negotiated.
func New(engine *sip.Engine, mon *stats.Monitor, store *settings.Store, defaultCodec string, log *logrus.Entry) *Surface {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Surface{
		log:          log,
		engine:       engine,
		mon:          mon,
		store:        store,
		defaultCodec: g711.ByName(defaultCodec),
		events:       make(chan Event, 32),
	}
}

// Events returns the channel events are published on. The caller should
// drain it continuously; emit drops the oldest queued event rather than
// block a command handler on a slow UI.
func (s *Surface) Events() <-chan Event {
	return s.events
}

func (s *Surface) emit(e Event) {
	select {
	case s.events <- e:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- e:
		default:
		}
	}
}

// Init marks the SIP stack ready; the socket and engine are already
// constructed by the caller, so this only announces readiness.
func (s *Surface) Init() {
	s.emit(Event{Type: EventInitialized, State: sip.StateInitialized.String(), Message: "SIP stack initialized"})
}

// Register performs REGISTER on the already-configured account and
// persists server/username/password to the settings store for the next
// run. The Engine itself stays bound to one account for the process's
// lifetime; this does not hot-swap it.
func (s *Surface) Register(server, username, password string) error {
	if s.store != nil {
		if err := s.store.SaveCredentials(server, username, password); err != nil {
			s.log.WithError(err).Warn("failed to persist credentials")
		}
	}

	err := s.engine.Register(registerExpires)
	registered := err == nil
	if s.mon != nil {
		s.mon.SetRegistered(registered)
	}

	state := sip.StateRegistered
	msg := fmt.Sprintf("registered as %s@%s", username, server)
	if !registered {
		state = sip.StateTerminated
		msg = err.Error()
	}
	s.emit(Event{Type: EventRegistrationState, Registered: &registered, State: state.String(), Message: msg})
	return err
}

// Unregister sends REGISTER with Expires: 0.
func (s *Surface) Unregister() error {
	err := s.engine.Unregister()
	registered := false
	if s.mon != nil {
		s.mon.SetRegistered(false)
	}
	msg := "unregistered"
	if err != nil {
		msg = err.Error()
	}
	s.emit(Event{Type: EventRegistrationState, Registered: &registered, State: sip.StateUninitialized.String(), Message: msg})
	return err
}

// CallOptions names the audio devices a Call command should open; empty
// strings mean the system default device.
type CallOptions struct {
	InputDevice  string
	OutputDevice string
}

// Call places an outbound call: builds an RTP session to reserve a
// local port, sends INVITE advertising it, drives auth/ACK, parses the
// remote SDP, and starts the capture/playback media loop. It returns
// once the call is active or has failed; media continues in the
// background until Hangup.
func (s *Surface) Call(number string, opts CallOptions) error {
	if s.mon == nil || !s.mon.Registered() {
		return coreerrors.Protocol("not registered")
	}
	s.emit(Event{Type: EventCallState, State: sip.StateOutgoing.String(), Message: "calling " + number})

	session, err := rtp.NewSession(rtp.Config{PayloadType: s.defaultCodec.PayloadType, Log: s.log})
	if err != nil {
		return s.failCall(err)
	}

	offer := sdp.Generate(sdp.Offer{
		LocalIP:              s.engine.LocalIP(),
		LocalRTPPort:         session.LocalPort(),
		PreferredPayloadType: s.defaultCodec.PayloadType,
	})

	resp, err := s.engine.Invite(number, offer)
	if err != nil {
		_ = session.Close()
		return s.failCall(err)
	}

	remote, err := sdp.Parse(resp.Body)
	if err != nil {
		_ = session.Close()
		_ = s.engine.Bye()
		return s.failCall(coreerrors.Media("parse remote sdp", err))
	}
	codec, err := g711.ByPayloadType(remote.PayloadType)
	if err != nil {
		_ = session.Close()
		_ = s.engine.Bye()
		return s.failCall(coreerrors.Media("select codec", err))
	}
	session.SetRemote(&net.UDPAddr{IP: net.ParseIP(remote.IP), Port: remote.Port})

	if err := s.engine.Ack(); err != nil {
		_ = session.Close()
		return s.failCall(err)
	}

	capture, playback, err := s.openDevices(opts)
	if err != nil {
		_ = session.Close()
		_ = s.engine.Bye()
		return s.failCall(err)
	}

	c, err := call.New(session, codec, capture, playback, s.log)
	if err != nil {
		_ = session.Close()
		_ = capture.Close()
		_ = playback.Close()
		_ = s.engine.Bye()
		return s.failCall(err)
	}
	if err := capture.Start(); err != nil {
		_ = session.Close()
		_ = capture.Close()
		_ = playback.Close()
		_ = s.engine.Bye()
		return s.failCall(err)
	}
	if err := playback.Start(); err != nil {
		_ = session.Close()
		_ = capture.Close()
		_ = playback.Close()
		_ = s.engine.Bye()
		return s.failCall(err)
	}
	c.Start()

	s.activeCall = c
	s.activeRTP = session
	s.activeCapture = capture
	s.activePlayback = playback

	if s.mon != nil {
		s.activeMonitor = s.mon.NewCall(number)
		s.activeMonitor.Start()
	}
	s.emit(Event{Type: EventCallState, State: sip.StateActive.String(), Message: "call active"})
	return nil
}

func (s *Surface) failCall(err error) error {
	summary := s.teardownCall(err.Error())
	s.emit(Event{Type: EventCallState, State: sip.StateTerminated.String(), Message: err.Error(), Summary: summary})
	return err
}

// Hangup sends BYE on the active dialog and tears down the media path.
func (s *Surface) Hangup() error {
	err := s.engine.Bye()
	reason := "hangup"
	msg := "call ended"
	if err != nil {
		reason = err.Error()
		msg = err.Error()
	}
	summary := s.teardownCall(reason)
	s.emit(Event{Type: EventCallState, State: sip.StateTerminated.String(), Message: msg, Summary: summary})
	return err
}

// teardownCall stops and releases whatever call state is active and
// returns the CallSummary for it, or nil if no call had started
// monitoring yet (e.g. a failure before Call reached the active state).
func (s *Surface) teardownCall(reason string) *CallSummary {
	if s.activeCall != nil {
		s.activeCall.Stop()
		s.activeCall = nil
	}

	var summary *CallSummary
	if s.activeMonitor != nil {
		var sent, received uint64
		if s.activeRTP != nil {
			sent, received = s.activeRTP.SentCount(), s.activeRTP.ReceivedCount()
		}
		summary = &CallSummary{
			RemoteNumber: s.activeMonitor.RemoteNumber(),
			StartTime:    s.activeMonitor.StartedAt(),
			EndTime:      time.Now(),
			Reason:       reason,
		}
		s.activeMonitor.End(sent, received)
		s.activeMonitor = nil
	}

	if s.activeRTP != nil {
		_ = s.activeRTP.Close()
		s.activeRTP = nil
	}
	if s.activeCapture != nil {
		_ = s.activeCapture.Stop()
		_ = s.activeCapture.Close()
		s.activeCapture = nil
	}
	if s.activePlayback != nil {
		_ = s.activePlayback.Stop()
		_ = s.activePlayback.Close()
		s.activePlayback = nil
	}
	return summary
}

func (s *Surface) openDevices(opts CallOptions) (*audio.Capture, *audio.Playback, error) {
	capture, err := audio.NewCapture(opts.InputDevice, call.DeviceSampleRate, s.log)
	if err != nil {
		return nil, nil, coreerrors.Media("open capture device", err)
	}
	playback, err := audio.NewPlayback(opts.OutputDevice, call.DeviceSampleRate, s.log)
	if err != nil {
		_ = capture.Close()
		return nil, nil, coreerrors.Media("open playback device", err)
	}
	return capture, playback, nil
}

// Answer is reserved: this phone's current design rejects incoming
// calls, so there is never an offered call to answer.
func (s *Surface) Answer() error {
	return coreerrors.Protocol("incoming calls are not accepted")
}

// ListInputDevices and ListOutputDevices enumerate host audio devices.
func (s *Surface) ListInputDevices() ([]audio.DeviceInfo, error) {
	return audio.ListInputDevices()
}

func (s *Surface) ListOutputDevices() ([]audio.DeviceInfo, error) {
	return audio.ListOutputDevices()
}

// TestMicrophone runs the microphone diagnostic for duration on device
// (empty for the system default).
func (s *Surface) TestMicrophone(device string, duration time.Duration) (*audio.MicrophoneTestResult, error) {
	return audio.TestMicrophone(device, call.DeviceSampleRate, duration, s.log)
}

// Shutdown runs the graceful unregister-before-exit sequence: if
// registered, it unregisters synchronously, bounded by shutdownTimeout.
// Call this once, from the process's exit path.
func (s *Surface) Shutdown(ctx context.Context) error {
	s.teardownCall("shutdown")
	if s.mon == nil || !s.mon.Registered() {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Unregister() }()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return coreerrors.Timeout("shutdown unregister")
	}
}
