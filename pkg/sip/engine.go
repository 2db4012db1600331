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

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DieselFuel147/platypus-phone/pkg/digest"
	coreerrors "github.com/DieselFuel147/platypus-phone/pkg/errors"
)

// Engine implements the request/response transaction cycle and dialog
// bookkeeping for register, invite, bye and unregister, each driving the
// provisional-skipping response loop with a single 401/407 authenticated
// retry.
type Engine struct {
	tr         *Transport
	server     *net.UDPAddr
	serverHost string
	serverURI  string
	localAOR   string
	contactURI string
	user       string
	password   string
	log        *logrus.Entry

	mu     sync.Mutex
	reg    *Registration
	dialog *Dialog
}

// NewEngine resolves serverAddr and prepares an Engine bound to tr.
func NewEngine(tr *Transport, serverAddr, user, password string, log *logrus.Entry) (*Engine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	addr, err := ResolveServer(serverAddr)
	if err != nil {
		return nil, err
	}
	host, _, splitErr := net.SplitHostPort(serverAddr)
	if splitErr != nil {
		host = serverAddr
	}
	e := &Engine{
		tr:         tr,
		server:     addr,
		serverHost: host,
		serverURI:  "sip:" + host,
		localAOR:   fmt.Sprintf("sip:%s@%s", user, host),
		contactURI: fmt.Sprintf("sip:%s@%s:%d", user, tr.LocalIP(), tr.LocalPort()),
		user:       user,
		password:   password,
		log:        log,
	}
	return e, nil
}

// LocalIP is the address this engine's transport advertises in
// Via/Contact/SDP, for callers building an SDP offer before any dialog
// exists.
func (e *Engine) LocalIP() string {
	return e.tr.LocalIP()
}

// Dialog returns the current active dialog, or nil.
func (e *Engine) Dialog() *Dialog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dialog
}

// Registration returns the current registration record, or nil.
func (e *Engine) Registration() *Registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg
}

type roundTripParams struct {
	method       string
	requestURI   string
	fromURI      string
	fromTag      string
	toURI        string
	toTag        string
	callID       string
	cseq         uint32
	contentType  string
	body         string
	extraHeaders []Header
	onResponse   func(*Response)
}

// roundTrip sends one request and drives the response loop: discard
// 1xx, stop at a final response or a 401/407 challenge. On a challenge
// it recomputes Authorization with CSeq+1 and a fresh
// branch and retries exactly once. It returns the final response and
// the CSeq number that was actually used on the wire, so callers can
// update dialog/registration state even when a retry occurred.
func (e *Engine) roundTrip(p roundTripParams) (*Response, uint32, error) {
	resp, err := e.attempt(p, p.cseq, "")
	if err != nil {
		return nil, p.cseq, err
	}
	if !resp.IsChallenge() {
		return resp, p.cseq, nil
	}

	challengeHeader := resp.Header("www-authenticate")
	authHeaderName := "Authorization"
	if resp.StatusCode == 407 {
		challengeHeader = resp.Header("proxy-authenticate")
		authHeaderName = "Proxy-Authorization"
	}
	if challengeHeader == "" {
		return nil, p.cseq, coreerrors.AuthFailed("missing challenge header on " + strconv.Itoa(resp.StatusCode))
	}

	ch, err := digest.ParseChallenge(challengeHeader)
	if err != nil {
		return nil, p.cseq, coreerrors.AuthFailed(err.Error())
	}
	authResp, err := digest.Compute(ch, digest.Credentials{
		Username: e.user, Password: e.password, Method: p.method, URI: p.requestURI,
	})
	if err != nil {
		return nil, p.cseq, coreerrors.AuthFailed(err.Error())
	}

	retryCSeq := p.cseq + 1
	resp2, err := e.attempt(p, retryCSeq, authHeaderName+": "+authResp.Header())
	if err != nil {
		return nil, retryCSeq, err
	}
	if resp2.IsChallenge() {
		return nil, retryCSeq, coreerrors.AuthFailed("second challenge after authenticated retry")
	}
	return resp2, retryCSeq, nil
}

func (e *Engine) attempt(p roundTripParams, cseq uint32, authLine string) (*Response, error) {
	authHeader, authValue := "", ""
	if authLine != "" {
		idx := len(authLine)
		for i := 0; i < len(authLine); i++ {
			if authLine[i] == ':' {
				idx = i
				break
			}
		}
		authHeader = authLine[:idx]
		authValue = authLine[idx+2:]
	}

	req := BuildRequest(RequestParams{
		Method:        p.method,
		RequestURI:    p.requestURI,
		LocalHost:     e.tr.LocalIP(),
		LocalPort:     e.tr.LocalPort(),
		Branch:        NewBranch(),
		FromURI:       p.fromURI,
		FromTag:       p.fromTag,
		ToURI:         p.toURI,
		ToTag:         p.toTag,
		CallID:        p.callID,
		CSeq:          cseq,
		ContactURI:    e.contactURI,
		AuthHeader:    authHeader,
		Authorization: authValue,
		ExtraHeaders:  p.extraHeaders,
		ContentType:   p.contentType,
		Body:          p.body,
	})
	return e.sendAndWaitFinal(req, p.method, p.onResponse)
}

// sendAndWaitFinal sends req and loops on Recv until a final response
// (2xx-6xx or 401/407) arrives or ResponseTimeout elapses. onEach, if
// non-nil, observes every parsed response including provisionals, so
// dialog remote-tag learning is not limited to the final response.
func (e *Engine) sendAndWaitFinal(req string, method string, onEach func(*Response)) (*Response, error) {
	if err := e.tr.Send([]byte(req), e.server); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(ResponseTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, coreerrors.Timeout(method)
		}
		data, _, err := e.tr.Recv(remaining)
		if err != nil {
			var ce *coreerrors.Error
			if errors.As(err, &ce) && ce.Kind == coreerrors.KindTimeout {
				return nil, err
			}
			return nil, err
		}
		resp, err := ParseResponse(data)
		if err != nil {
			e.log.WithError(err).Debug("discarding malformed sip response")
			continue
		}
		if onEach != nil {
			onEach(resp)
		}
		if resp.IsProvisional() {
			continue
		}
		return resp, nil
	}
}

func learnRemoteTag(dlg *Dialog) func(*Response) {
	return func(r *Response) {
		if tag, ok := TagFromHeader(r.Header("to")); ok {
			dlg.SetRemoteTagOnce(tag)
		}
	}
}

// Register performs REGISTER including the single authenticated retry.
func (e *Engine) Register(expires int) error {
	e.mu.Lock()
	if e.reg == nil {
		e.reg = &Registration{CallID: NewCallID(), LocalTag: NewTag()}
	}
	reg := e.reg
	cseq := reg.NextCSeq()
	e.mu.Unlock()

	resp, finalCSeq, err := e.roundTrip(roundTripParams{
		method:     "REGISTER",
		requestURI: e.serverURI,
		fromURI:    e.localAOR,
		fromTag:    reg.LocalTag,
		toURI:      e.localAOR,
		callID:     reg.CallID,
		cseq:       cseq,
		extraHeaders: []Header{
			{Name: "Expires", Value: strconv.Itoa(expires)},
		},
	})

	e.mu.Lock()
	reg.CSeq = finalCSeq
	e.mu.Unlock()

	if err != nil {
		reg.Active = false
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reg.Active = false
		return coreerrors.CallRejected(resp.StatusCode, resp.Reason)
	}
	reg.Active = expires > 0
	reg.Expires = expires
	return nil
}

// Unregister is REGISTER with Expires: 0.
func (e *Engine) Unregister() error {
	return e.Register(0)
}

// Invite builds and sends an INVITE carrying sdpBody, drives the
// response loop (including the single auth retry), and on 2xx returns
// the final response so the caller can parse its SDP body and start
// media. On a non-2xx final response it returns CallRejected and
// terminates the dialog.
func (e *Engine) Invite(number, sdpBody string) (*Response, error) {
	e.mu.Lock()
	dlg := &Dialog{
		CallID:   NewCallID(),
		LocalTag: NewTag(),
		State:    StateOutgoing,
	}
	requestURI := fmt.Sprintf("sip:%s@%s", number, e.serverHost)
	dlg.RemoteURI = requestURI
	e.dialog = dlg
	cseq := dlg.NextCSeq()
	e.mu.Unlock()

	resp, finalCSeq, err := e.roundTrip(roundTripParams{
		method:      "INVITE",
		requestURI:  requestURI,
		fromURI:     e.localAOR,
		fromTag:     dlg.LocalTag,
		toURI:       requestURI,
		callID:      dlg.CallID,
		cseq:        cseq,
		contentType: "application/sdp",
		body:        sdpBody,
		onResponse:  learnRemoteTag(dlg),
	})

	e.mu.Lock()
	dlg.LocalCSeq = finalCSeq
	defer e.mu.Unlock()

	if err != nil {
		dlg.State = StateTerminated
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		dlg.State = StateTerminated
		return resp, coreerrors.CallRejected(resp.StatusCode, resp.Reason)
	}

	if contact := resp.Header("contact"); contact != "" {
		dlg.RemoteTarget = contact
	}
	dlg.State = StateActive
	return resp, nil
}

// Ack sends the ACK for the 2xx that confirmed the current dialog: an
// independent transaction reusing the INVITE's CSeq number (not
// incremented), with a fresh branch and a zero-length body.
func (e *Engine) Ack() error {
	e.mu.Lock()
	dlg := e.dialog
	if dlg == nil {
		e.mu.Unlock()
		return coreerrors.Protocol("ack with no active dialog")
	}
	req := BuildRequest(RequestParams{
		Method:     "ACK",
		RequestURI: dlg.RemoteURI,
		LocalHost:  e.tr.LocalIP(),
		LocalPort:  e.tr.LocalPort(),
		Branch:     NewBranch(),
		FromURI:    e.localAOR,
		FromTag:    dlg.LocalTag,
		ToURI:      dlg.RemoteURI,
		ToTag:      dlg.RemoteTag,
		CallID:     dlg.CallID,
		CSeq:       dlg.LocalCSeq, // reused, not incremented
		ContactURI: e.contactURI,
	})
	server := e.server
	e.mu.Unlock()
	return e.tr.Send([]byte(req), server)
}

// Bye sends BYE on the active dialog and tears it down. Treated as
// succeeded on any final response.
func (e *Engine) Bye() error {
	e.mu.Lock()
	dlg := e.dialog
	if dlg == nil {
		e.mu.Unlock()
		return coreerrors.Protocol("bye with no active dialog")
	}
	cseq := dlg.NextCSeq()
	e.mu.Unlock()

	_, finalCSeq, err := e.roundTrip(roundTripParams{
		method:     "BYE",
		requestURI: dlg.RemoteURI,
		fromURI:    e.localAOR,
		fromTag:    dlg.LocalTag,
		toURI:      dlg.RemoteURI,
		toTag:      dlg.RemoteTag,
		callID:     dlg.CallID,
		cseq:       cseq,
	})

	e.mu.Lock()
	dlg.LocalCSeq = finalCSeq
	dlg.State = StateTerminated
	e.dialog = nil
	e.mu.Unlock()

	if err != nil {
		var ce *coreerrors.Error
		if errors.As(err, &ce) && ce.Kind == coreerrors.KindTimeout {
			return nil // treated as succeeded; no retransmission timers in this design
		}
		return err
	}
	return nil
}
