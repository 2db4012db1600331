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

package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCanonicalRFC2617Vector reproduces the worked example from RFC 2617
// section 3.5, confirming HA1/HA2/response composition bit for bit.
func TestCanonicalRFC2617Vector(t *testing.T) {
	h1 := ha1("Mufasa", "testrealm@host.com", "Circle Of Life")
	require.Equal(t, "939e7578ed9e3c518a452acee763bce9", h1)

	h2 := ha2("GET", "/dir/index.html")
	require.Equal(t, "39aff3a2bab6126f332b942af96d3366", h2)

	nonce := "dcd98b7102dd2f0e8b11d0f600bbdc7c"
	nc := "00000001"
	cnonce := "0a4f113b"
	resp := md5Hex(h1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + "auth" + ":" + h2)
	require.Equal(t, "6629fae49393a05397450978507c4ef1", resp)
}

func TestComputeWithoutQop(t *testing.T) {
	ch := &Challenge{Realm: "x", Nonce: "abc", Algorithm: "MD5"}
	cred := Credentials{Username: "u", Password: "p", Method: "REGISTER", URI: "sip:x"}

	resp, err := Compute(ch, cred)
	require.NoError(t, err)
	require.Empty(t, resp.Qop)

	want := md5Hex(ha1("u", "x", "p") + ":" + "abc" + ":" + ha2("REGISTER", "sip:x"))
	require.Equal(t, want, resp.Response)
}

func TestComputeWithQopAuth(t *testing.T) {
	ch := &Challenge{Realm: "x", Nonce: "abc", Algorithm: "MD5", Qop: true}
	cred := Credentials{Username: "u", Password: "p", Method: "REGISTER", URI: "sip:x"}

	resp, err := Compute(ch, cred)
	require.NoError(t, err)
	require.Equal(t, "auth", resp.Qop)
	require.Equal(t, "00000001", resp.NC)
	require.NotEmpty(t, resp.Cnonce)

	want := md5Hex(ha1("u", "x", "p") + ":" + "abc" + ":" + "00000001" + ":" + resp.Cnonce + ":" + "auth" + ":" + ha2("REGISTER", "sip:x"))
	require.Equal(t, want, resp.Response)
}

func TestHeaderRendersQuotedParams(t *testing.T) {
	ch := &Challenge{Realm: "x", Nonce: "abc", Algorithm: "MD5", Qop: true}
	cred := Credentials{Username: "u", Password: "p", Method: "REGISTER", URI: "sip:x"}
	resp, err := Compute(ch, cred)
	require.NoError(t, err)

	h := resp.Header()
	require.Contains(t, h, `username="u"`)
	require.Contains(t, h, `realm="x"`)
	require.Contains(t, h, `nonce="abc"`)
	require.Contains(t, h, `uri="sip:x"`)
	require.Contains(t, h, "qop=auth")
	require.Contains(t, h, "nc=00000001")
	require.Contains(t, h, "algorithm=MD5")
}

func TestParseChallengeRejectsMissingNonce(t *testing.T) {
	_, err := ParseChallenge(`Digest realm="x"`)
	require.Error(t, err)
}

func TestParseChallengeDetectsQop(t *testing.T) {
	c, err := ParseChallenge(`Digest realm="x", nonce="abc", qop="auth"`)
	require.NoError(t, err)
	require.True(t, c.Qop)
	require.Equal(t, "x", c.Realm)
	require.Equal(t, "abc", c.Nonce)
}

// TestParseChallengeLeavesAlgorithmEmptyWhenOmitted reproduces spec.md §8
// Scenario 2: a challenge with no algorithm= parameter must round-trip
// into a Header() with no algorithm field at all, not a forced MD5.
func TestParseChallengeLeavesAlgorithmEmptyWhenOmitted(t *testing.T) {
	c, err := ParseChallenge(`Digest realm="x", nonce="abc"`)
	require.NoError(t, err)
	require.Empty(t, c.Algorithm)

	cred := Credentials{Username: "u", Password: "p", Method: "REGISTER", URI: "sip:x"}
	resp, err := Compute(c, cred)
	require.NoError(t, err)
	require.Empty(t, resp.Algorithm)
	require.NotContains(t, resp.Header(), "algorithm=")
}
