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

// Package digest computes RFC 2617 Digest Authentication responses for
// outbound SIP requests.
package digest

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/icholy/digest"
)

// Challenge is the parsed content of a WWW-Authenticate or
// Proxy-Authenticate header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Algorithm string
	Qop       bool // true if the challenge carries any qop parameter; answered as qop=auth
}

// ParseChallenge parses the value of a WWW-Authenticate/Proxy-Authenticate
// header (without the leading header name) into a Challenge. Quoted
// string unescaping is delegated to icholy/digest, which already
// implements RFC 2617's auth-param grammar; this module decides only
// whether a qop parameter is present by checking the raw text for
// "qop=", without inspecting which qop values it lists.
func ParseChallenge(header string) (*Challenge, error) {
	c, err := digest.ParseChallenge(header)
	if err != nil {
		return nil, fmt.Errorf("digest: parse challenge: %w", err)
	}
	if c.Realm == "" || c.Nonce == "" {
		return nil, fmt.Errorf("digest: challenge missing realm or nonce")
	}
	return &Challenge{
		Realm:     c.Realm,
		Nonce:     c.Nonce,
		Opaque:    c.Opaque,
		Algorithm: c.Algorithm,
		Qop:       strings.Contains(header, "qop="),
	}, nil
}

// Credentials are the inputs needed to compute a Digest response for one
// request.
type Credentials struct {
	Username string
	Password string
	Method   string
	URI      string
}

// Response is the computed Digest response and the parameters needed to
// render the Authorization header.
type Response struct {
	Username  string
	Realm     string
	Nonce     string
	URI       string
	Response  string
	Algorithm string
	Opaque    string
	Qop       string // "auth" when used, else empty
	Cnonce    string
	NC        string
}

func ha1(username, realm, password string) string {
	return md5Hex(username + ":" + realm + ":" + password)
}

func ha2(method, uri string) string {
	return md5Hex(method + ":" + uri)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// randomCnonce generates a random hex client nonce.
func randomCnonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("digest: generate cnonce: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Compute derives HA1/HA2 and then either the plain or the qop=auth
// response formula. nc is always "00000001": this engine never retries
// a second time against the same nonce, so there is no count to carry
// forward.
func Compute(ch *Challenge, cred Credentials) (*Response, error) {
	h1 := ha1(cred.Username, ch.Realm, cred.Password)
	h2 := ha2(cred.Method, cred.URI)

	r := &Response{
		Username:  cred.Username,
		Realm:     ch.Realm,
		Nonce:     ch.Nonce,
		URI:       cred.URI,
		Algorithm: ch.Algorithm,
		Opaque:    ch.Opaque,
	}

	if !ch.Qop {
		r.Response = md5Hex(h1 + ":" + ch.Nonce + ":" + h2)
		return r, nil
	}

	cnonce, err := randomCnonce()
	if err != nil {
		return nil, err
	}
	r.Qop = "auth"
	r.NC = "00000001"
	r.Cnonce = cnonce
	r.Response = md5Hex(h1 + ":" + ch.Nonce + ":" + r.NC + ":" + cnonce + ":" + "auth" + ":" + h2)
	return r, nil
}

// Header renders r as the value of an Authorization/Proxy-Authorization
// header, with quoted parameters in the conventional order and
// algorithm=MD5 echoed when the challenge supplied one.
func (r *Response) Header() string {
	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		r.Username, r.Realm, r.Nonce, r.URI, r.Response)
	if r.Algorithm != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, r.Algorithm)
	}
	if r.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, r.Opaque)
	}
	if r.Qop != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, r.Qop, r.NC, r.Cnonce)
	}
	return b.String()
}
