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

// ULawSDPName is the rtpmap name advertised for payload type 0.
const ULawSDPName = "PCMU/8000"

// PayloadTypeULaw is the static RTP payload type for G.711 mu-law.
const PayloadTypeULaw uint8 = 0

// ULawSample is a buffer of mu-law encoded bytes, one per linear PCM sample.
type ULawSample []byte

// Decode converts the mu-law buffer to 16-bit linear PCM.
func (s ULawSample) Decode() []int16 {
	out := make([]int16, len(s))
	DecodeULawTo(out, s)
	return out
}

// Encode mu-law encodes data into s, reusing the backing array when it fits.
func (s *ULawSample) Encode(data []int16) {
	if cap(*s) >= len(data) {
		*s = (*s)[:len(data)]
	} else {
		*s = make(ULawSample, len(data))
	}
	EncodeULawTo(*s, data)
}

// EncodeULaw mu-law encodes a single linear sample.
func EncodeULaw(s int16) byte {
	return lin2ulaw[(int(s)+32768)>>2]
}

// DecodeULaw decodes a single mu-law byte to a linear sample.
func DecodeULaw(b byte) int16 {
	return ulaw2lin[b]
}
