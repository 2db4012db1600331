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

// Package sdp generates and parses the fixed single-audio-media SDP
// subset this phone exchanges with its peer: RFC 4566 syntax, no ICE,
// no bundle groups, PCMU/PCMA/telephone-event only.
package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// Offer is the minimal set of fields this phone needs to generate or has
// learned from a peer's SDP.
type Offer struct {
	LocalIP        string
	LocalRTPPort   int
	SessionID      uint64
	SessionVersion uint64
	// PreferredPayloadType is listed first in the m=audio format list,
	// 0 (mu-law) or 8 (A-law). Both are always offered regardless; this
	// only decides which one the answerer sees as preferred.
	PreferredPayloadType uint8
}

// Generate renders a minimal fixed-template audio offer advertising
// PCMU and PCMA (ordered by PreferredPayloadType) and telephone-event,
// in sendrecv mode.
func Generate(o Offer) string {
	fmtOrder := "0 8"
	if o.PreferredPayloadType == 8 {
		fmtOrder = "8 0"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "v=0\r\n")
	fmt.Fprintf(&b, "o=- %d %d IN IP4 %s\r\n", o.SessionID, o.SessionVersion, o.LocalIP)
	fmt.Fprintf(&b, "s=-\r\n")
	fmt.Fprintf(&b, "c=IN IP4 %s\r\n", o.LocalIP)
	fmt.Fprintf(&b, "t=0 0\r\n")
	fmt.Fprintf(&b, "m=audio %d RTP/AVP %s 101\r\n", o.LocalRTPPort, fmtOrder)
	fmt.Fprintf(&b, "a=rtpmap:0 PCMU/8000\r\n")
	fmt.Fprintf(&b, "a=rtpmap:8 PCMA/8000\r\n")
	fmt.Fprintf(&b, "a=rtpmap:101 telephone-event/8000\r\n")
	fmt.Fprintf(&b, "a=sendrecv\r\n")
	return b.String()
}

// Remote is what this phone needs out of a peer's SDP answer: where to
// send RTP and which codec to use.
type Remote struct {
	IP          string
	Port        int
	PayloadType uint8 // 0 (mu-law) or 8 (A-law)
}

// Parse extracts the c= address, the m=audio port and the first payload
// type, defaulting to PT 0 on ambiguity. Unknown lines are ignored.
func Parse(body string) (Remote, error) {
	var r Remote
	r.PayloadType = 0 // default to mu-law on ambiguity
	haveIP, haveAudio := false, false

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "c="):
			// c=IN IP4 <addr>
			fields := strings.Fields(strings.TrimPrefix(line, "c="))
			if len(fields) == 3 && fields[0] == "IN" {
				r.IP = fields[2]
				haveIP = true
			}
		case strings.HasPrefix(line, "m=audio"):
			fields := strings.Fields(strings.TrimPrefix(line, "m="))
			// audio <port> RTP/AVP <fmt>...
			if len(fields) < 4 {
				continue
			}
			port, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			r.Port = port
			if pt, err := strconv.Atoi(fields[3]); err == nil {
				switch pt {
				case 0, 8:
					r.PayloadType = uint8(pt)
				}
			}
			haveAudio = true
		}
	}

	if !haveIP {
		return Remote{}, fmt.Errorf("sdp: missing connection address")
	}
	if !haveAudio {
		return Remote{}, fmt.Errorf("sdp: missing audio media description")
	}
	return r, nil
}
