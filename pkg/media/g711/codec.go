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

package g711

import (
	"fmt"
	"strings"
)

// Codec pairs an encode/decode function pair with the RTP payload type
// and SDP name they correspond to, so the RTP session can pick one at
// call setup without special-casing mu-law vs A-law at every call site.
type Codec struct {
	PayloadType uint8
	SDPName     string
	EncodeTo    func(dst []byte, src []int16)
	DecodeTo    func(dst []int16, src []byte)
}

// ULaw and ALaw are the two static payload types this phone negotiates.
var (
	ULaw = Codec{PayloadType: PayloadTypeULaw, SDPName: ULawSDPName, EncodeTo: EncodeULawTo, DecodeTo: DecodeULawTo}
	ALaw = Codec{PayloadType: PayloadTypeALaw, SDPName: ALawSDPName, EncodeTo: EncodeALawTo, DecodeTo: DecodeALawTo}
)

// ByPayloadType returns the Codec for pt, or an error when pt matches
// neither static payload type.
func ByPayloadType(pt uint8) (Codec, error) {
	switch pt {
	case PayloadTypeULaw:
		return ULaw, nil
	case PayloadTypeALaw:
		return ALaw, nil
	default:
		return Codec{}, fmt.Errorf("g711: unsupported payload type %d", pt)
	}
}

// ByName resolves a config-level codec name ("pcmu" or "pcma", case
// insensitive) to a Codec, defaulting to mu-law for any other value
// including an empty string.
func ByName(name string) Codec {
	if strings.EqualFold(name, "pcma") {
		return ALaw
	}
	return ULaw
}
