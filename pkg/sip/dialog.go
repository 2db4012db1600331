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

package sip

// CallState is the lifecycle state reported alongside call_state events.
type CallState int

const (
	StateUninitialized CallState = iota
	StateInitialized
	StateRegistering
	StateRegistered
	StateOutgoing
	StateActive
	StateTerminated
)

func (s CallState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitialized:
		return "INITIALIZED"
	case StateRegistering:
		return "REGISTERING"
	case StateRegistered:
		return "REGISTERED"
	case StateOutgoing:
		return "OUTGOING"
	case StateActive:
		return "ACTIVE"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Dialog identifies one SIP dialog. CallID and LocalTag never change
// across the dialog's life; RemoteTag is learned from the first response
// that carries a To-tag and is immutable thereafter.
type Dialog struct {
	CallID       string
	LocalTag     string
	RemoteTag    string
	LocalCSeq    uint32
	RemoteURI    string
	RemoteTarget string
	State        CallState
}

// NextCSeq increments and returns the CSeq to use for the next new
// request in the dialog. Every request other than the ACK of a
// 2xx-INVITE increments the dialog's local CSeq by exactly one.
func (d *Dialog) NextCSeq() uint32 {
	d.LocalCSeq++
	return d.LocalCSeq
}

// SetRemoteTagOnce records the remote tag the first time it is observed,
// and is a no-op afterward. The remote tag is locked in from the very
// first tagged response the dialog ever sees, including provisionals.
func (d *Dialog) SetRemoteTagOnce(tag string) {
	if d.RemoteTag == "" && tag != "" {
		d.RemoteTag = tag
	}
}

// Registration is the process-wide single-account registration record.
type Registration struct {
	CallID   string
	LocalTag string
	CSeq     uint32
	Realm    string
	Nonce    string
	Expires  int
	Active   bool
}

// NextCSeq increments and returns the CSeq for the next REGISTER.
func (r *Registration) NextCSeq() uint32 {
	r.CSeq++
	return r.CSeq
}
