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

// Package sip implements the SIP transport, Digest-authenticated
// transaction/dialog engine, and message framing this phone needs to
// register and place outbound calls.
package sip

import (
	"fmt"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	coreerrors "github.com/DieselFuel147/platypus-phone/pkg/errors"
)

// DefaultPort is the SIP default port for UDP transport.
const DefaultPort = 5060

// ResponseTimeout bounds how long the engine waits for a final response
// to one transaction.
const ResponseTimeout = 10 * time.Second

// localIPProbeAddr is used to discover the local address that will fill
// Via and Contact: open a connected UDP socket to a public address and
// read its local end. No packet is actually sent.
const localIPProbeAddr = "8.8.8.8:80"

// Transport owns one UDP socket for the lifetime of the process.
type Transport struct {
	conn    *net.UDPConn
	localIP string
	log     *logrus.Entry
}

// NewTransport binds an ephemeral UDP socket and discovers the local
// address that should populate Via/Contact headers.
func NewTransport(log *logrus.Entry) (*Transport, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, coreerrors.Transport("bind sip socket", err)
	}

	ip, err := discoverLocalIP()
	if err != nil {
		_ = conn.Close()
		return nil, coreerrors.Transport("discover local address", err)
	}

	return &Transport{conn: conn, localIP: ip, log: log}, nil
}

func discoverLocalIP() (string, error) {
	c, err := net.Dial("udp", localIPProbeAddr)
	if err != nil {
		return "", err
	}
	defer c.Close()
	addr, ok := c.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local addr type %T", c.LocalAddr())
	}
	return addr.IP.String(), nil
}

// LocalIP is the discovered address used in Via/Contact/SDP.
func (t *Transport) LocalIP() string { return t.localIP }

// LocalPort is the bound ephemeral SIP port.
func (t *Transport) LocalPort() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

// ResolveServer resolves host:port (defaulting to DefaultPort) to a UDP
// address. net's resolver already performs the DNS lookup asynchronously
// under the hood.
func ResolveServer(hostport string) (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, fmt.Sprintf("%d", DefaultPort)
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, coreerrors.Transport("resolve "+hostport, err)
	}
	return addr, nil
}

// Send writes one datagram to server.
func (t *Transport) Send(data []byte, server *net.UDPAddr) error {
	if _, err := t.conn.WriteToUDP(data, server); err != nil {
		return coreerrors.Transport("send", pkgerrors.WithStack(err))
	}
	return nil
}

// Recv blocks for one datagram up to timeout, returning its bytes and
// sender address.
func (t *Transport) Recv(timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, coreerrors.Transport("set read deadline", err)
	}
	buf := make([]byte, 65535)
	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, coreerrors.Timeout("sip recv")
		}
		return nil, nil, coreerrors.Transport("recv", pkgerrors.WithStack(err))
	}
	return buf[:n], from, nil
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}
