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
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/DieselFuel147/platypus-phone/pkg/errors"
)

// fakeServer is a minimal scripted SIP UDP peer used to drive the
// engine through end-to-end scenarios without a real PBX.
type fakeServer struct {
	conn     *net.UDPConn
	requests chan parsedRequest
}

type parsedRequest struct {
	method string
	cseq   string
	branch string
	raw    string
	from   *net.UDPAddr
}

func startFakeServer(t *testing.T) *fakeServer {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	s := &fakeServer{conn: conn, requests: make(chan parsedRequest, 16)}
	go s.loop()
	t.Cleanup(func() { _ = conn.Close() })
	return s
}

func (s *fakeServer) addr() string {
	return s.conn.LocalAddr().String()
}

func (s *fakeServer) loop() {
	buf := make([]byte, 65535)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		raw := string(buf[:n])
		firstLine := strings.SplitN(raw, "\r\n", 2)[0]
		method := strings.SplitN(firstLine, " ", 2)[0]
		cseq, branch := "", ""
		for _, line := range strings.Split(raw, "\r\n") {
			if strings.HasPrefix(strings.ToLower(line), "cseq:") {
				cseq = strings.TrimSpace(line[len("CSeq:"):])
			}
			if strings.HasPrefix(strings.ToLower(line), "via:") {
				if idx := strings.Index(line, "branch="); idx >= 0 {
					branch = strings.SplitN(line[idx+len("branch="):], ";", 2)[0]
				}
			}
		}
		s.requests <- parsedRequest{method: method, cseq: cseq, branch: branch, raw: raw, from: from}
	}
}

func (s *fakeServer) send(to *net.UDPAddr, msg string) {
	_, _ = s.conn.WriteToUDP([]byte(msg), to)
}

func respond(status int, reason, fromTag, toTag, callID, cseqLine, viaBranch string, extraHeaders ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SIP/2.0 %d %s\r\n", status, reason)
	fmt.Fprintf(&b, "Via: SIP/2.0/UDP 127.0.0.1:5060;branch=%s\r\n", viaBranch)
	fmt.Fprintf(&b, "From: <sip:u@x>;tag=%s\r\n", fromTag)
	if toTag != "" {
		fmt.Fprintf(&b, "To: <sip:u@x>;tag=%s\r\n", toTag)
	} else {
		fmt.Fprintf(&b, "To: <sip:u@x>\r\n")
	}
	fmt.Fprintf(&b, "Call-ID: %s\r\n", callID)
	fmt.Fprintf(&b, "CSeq: %s\r\n", cseqLine)
	for _, h := range extraHeaders {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("Content-Length: 0\r\n\r\n")
	return b.String()
}

func newTestEngine(t *testing.T, serverAddr string) *Engine {
	tr, err := NewTransport(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	e, err := NewEngine(tr, serverAddr, "u", "p", nil)
	require.NoError(t, err)
	return e
}

func cseqNumber(cseqLine string) string {
	return strings.SplitN(cseqLine, " ", 2)[0]
}

// Scenario 1: register, no auth required.
func TestRegisterNoAuthRequired(t *testing.T) {
	srv := startFakeServer(t)
	e := newTestEngine(t, srv.addr())

	done := make(chan error, 1)
	go func() { done <- e.Register(3600) }()

	req := <-srv.requests
	require.Equal(t, "REGISTER", req.method)
	require.Equal(t, "1", cseqNumber(req.cseq))
	srv.send(req.from, respond(200, "OK", "local", "", e.Registration().CallID, req.cseq, req.branch))

	require.NoError(t, <-done)
	require.True(t, e.Registration().Active)
	require.EqualValues(t, 1, e.Registration().CSeq)
}

// Scenario 2: register with qop=auth.
func TestRegisterWithQopAuth(t *testing.T) {
	srv := startFakeServer(t)
	e := newTestEngine(t, srv.addr())

	done := make(chan error, 1)
	go func() { done <- e.Register(3600) }()

	req1 := <-srv.requests
	require.Equal(t, "1", cseqNumber(req1.cseq))
	srv.send(req1.from, respond(401, "Unauthorized", "local", "", e.Registration().CallID, req1.cseq, req1.branch,
		`WWW-Authenticate: Digest realm="x", nonce="abc", qop="auth"`))

	req2 := <-srv.requests
	require.Equal(t, "2", cseqNumber(req2.cseq))
	require.NotEqual(t, req1.branch, req2.branch)
	require.Contains(t, req2.raw, `realm="x"`)
	require.Contains(t, req2.raw, `nonce="abc"`)
	require.Contains(t, req2.raw, "qop=auth")
	require.Contains(t, req2.raw, "nc=00000001")
	require.Contains(t, req2.raw, `uri="sip:127.0.0.1`)

	srv.send(req2.from, respond(200, "OK", "local", "", e.Registration().CallID, req2.cseq, req2.branch))

	require.NoError(t, <-done)
	require.EqualValues(t, 2, e.Registration().CSeq)
}

// Scenario 3: INVITE with a provisional storm then a 401 then success.
func TestInviteWithProvisionalStormAndAuth(t *testing.T) {
	srv := startFakeServer(t)
	e := newTestEngine(t, srv.addr())

	result := make(chan struct {
		resp *Response
		err  error
	}, 1)
	go func() {
		resp, err := e.Invite("123", "v=0\r\n")
		result <- struct {
			resp *Response
			err  error
		}{resp, err}
	}()

	req1 := <-srv.requests
	require.Equal(t, "INVITE", req1.method)
	callID := e.Dialog().CallID
	srv.send(req1.from, respond(100, "Trying", "remote", "", callID, req1.cseq, req1.branch))
	srv.send(req1.from, respond(180, "Ringing", "remote", "remotetag", callID, req1.cseq, req1.branch))
	srv.send(req1.from, respond(183, "Session Progress", "remote", "remotetag", callID, req1.cseq, req1.branch))
	srv.send(req1.from, respond(401, "Unauthorized", "remote", "remotetag", callID, req1.cseq, req1.branch,
		`WWW-Authenticate: Digest realm="x", nonce="abc", qop="auth"`))

	req2 := <-srv.requests
	require.Equal(t, "2", cseqNumber(req2.cseq))
	require.NotEqual(t, req1.branch, req2.branch)
	srv.send(req2.from, respond(100, "Trying", "remote", "", callID, req2.cseq, req2.branch))
	srv.send(req2.from, respond(180, "Ringing", "remote", "remotetag", callID, req2.cseq, req2.branch))
	srv.send(req2.from, respond(200, "OK", "remote", "remotetag", callID, req2.cseq, req2.branch))

	r := <-result
	require.NoError(t, r.err)
	require.Equal(t, 200, r.resp.StatusCode)
	require.Equal(t, "remotetag", e.Dialog().RemoteTag)
	require.Equal(t, StateActive, e.Dialog().State)

	require.NoError(t, e.Ack())
	ack := <-srv.requests
	require.Equal(t, "ACK", ack.method)
	require.Equal(t, "2", cseqNumber(ack.cseq), "ACK reuses the INVITE cseq, not incremented")
}

// Scenario 4: INVITE rejected.
func TestInviteRejected(t *testing.T) {
	srv := startFakeServer(t)
	e := newTestEngine(t, srv.addr())

	result := make(chan error, 1)
	go func() {
		_, err := e.Invite("123", "v=0\r\n")
		result <- err
	}()

	req := <-srv.requests
	callID := e.Dialog().CallID
	srv.send(req.from, respond(100, "Trying", "remote", "", callID, req.cseq, req.branch))
	srv.send(req.from, respond(486, "Busy Here", "remote", "busytag", callID, req.cseq, req.branch))

	err := <-result
	require.Error(t, err)
	kind, ok := coreerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, coreerrors.KindCallRejected, kind)
	require.Equal(t, StateTerminated, e.Dialog().State)
}

// Scenario 5: hangup mid-call.
func TestHangupSendsByeWithIncrementedCSeq(t *testing.T) {
	srv := startFakeServer(t)
	e := newTestEngine(t, srv.addr())

	result := make(chan error, 1)
	go func() {
		_, err := e.Invite("123", "v=0\r\n")
		result <- err
	}()
	req := <-srv.requests
	callID := e.Dialog().CallID
	srv.send(req.from, respond(200, "OK", "remote", "finaltag", callID, req.cseq, req.branch))
	require.NoError(t, <-result)
	require.NoError(t, e.Ack())
	<-srv.requests // drain ACK

	byeDone := make(chan error, 1)
	go func() { byeDone <- e.Bye() }()
	bye := <-srv.requests
	require.Equal(t, "BYE", bye.method)
	require.Equal(t, "2", cseqNumber(bye.cseq))
	srv.send(bye.from, respond(200, "OK", "remote", "finaltag", callID, bye.cseq, bye.branch))

	require.NoError(t, <-byeDone)
	require.Nil(t, e.Dialog())
}
