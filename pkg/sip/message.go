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
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	coreerrors "github.com/DieselFuel147/platypus-phone/pkg/errors"
)

// UserAgent is the fixed User-Agent header value this phone sends.
const UserAgent = "PlatypusPhone/1.0"

// NewBranch returns a fresh, z9hG4bK-prefixed Via branch token.
func NewBranch() string {
	return "z9hG4bK" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// NewCallID returns a fresh, opaque Call-ID.
func NewCallID() string {
	return uuid.NewString()
}

// NewTag returns a fresh From/To tag.
func NewTag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// RequestLine identifies a request's method and target.
type RequestLine struct {
	Method string
	URI    string
}

// RequestParams carries everything needed to render one SIP request.
type RequestParams struct {
	Method      string
	RequestURI  string
	LocalHost   string
	LocalPort   int
	Branch      string
	FromURI     string
	FromTag     string
	ToURI         string
	ToTag         string // empty for dialog-initiating requests
	CallID        string
	CSeq          uint32
	ContactURI    string
	AuthHeader    string // "Authorization" or "Proxy-Authorization"
	Authorization string // full header value, or empty
	ExtraHeaders  []Header
	ContentType   string
	Body          string
}

// Header is a single extra header line.
type Header struct {
	Name  string
	Value string
}

// BuildRequest renders p into a full SIP/2.0 request over UDP: Via with
// fresh branch, To with remote tag when present, From with local tag,
// Call-ID, CSeq, Max-Forwards: 70, Contact, Content-Length, and (for
// INVITE) Content-Type/body.
func BuildRequest(p RequestParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s SIP/2.0\r\n", p.Method, p.RequestURI)
	fmt.Fprintf(&b, "Via: SIP/2.0/UDP %s:%d;branch=%s;rport\r\n", p.LocalHost, p.LocalPort, p.Branch)
	if p.ToTag != "" {
		fmt.Fprintf(&b, "To: <%s>;tag=%s\r\n", p.ToURI, p.ToTag)
	} else {
		fmt.Fprintf(&b, "To: <%s>\r\n", p.ToURI)
	}
	fmt.Fprintf(&b, "From: <%s>;tag=%s\r\n", p.FromURI, p.FromTag)
	fmt.Fprintf(&b, "Call-ID: %s\r\n", p.CallID)
	fmt.Fprintf(&b, "CSeq: %d %s\r\n", p.CSeq, p.Method)
	fmt.Fprintf(&b, "Max-Forwards: 70\r\n")
	if p.ContactURI != "" {
		fmt.Fprintf(&b, "Contact: <%s>\r\n", p.ContactURI)
	}
	if p.Authorization != "" {
		name := p.AuthHeader
		if name == "" {
			name = "Authorization"
		}
		fmt.Fprintf(&b, "%s: %s\r\n", name, p.Authorization)
	}
	for _, h := range p.ExtraHeaders {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	fmt.Fprintf(&b, "User-Agent: %s\r\n", UserAgent)
	if p.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", p.ContentType)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(p.Body))
	b.WriteString("\r\n")
	b.WriteString(p.Body)
	return b.String()
}

// Response is a parsed SIP response: status line, headers and body.
type Response struct {
	StatusCode int
	Reason     string
	Headers    map[string][]string // lower-cased header name -> raw values, in order
	Body       string
}

// Header returns the first value of the named header, or "" if absent.
func (r *Response) Header(name string) string {
	vs := r.Headers[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// IsProvisional reports whether the response is a 1xx.
func (r *Response) IsProvisional() bool {
	return r.StatusCode >= 100 && r.StatusCode < 200
}

// IsFinal reports whether the response is 2xx-6xx, i.e. terminates the
// transaction's response loop.
func (r *Response) IsFinal() bool {
	return r.StatusCode >= 200 && r.StatusCode < 700
}

// IsChallenge reports a 401 or 407, which the response loop treats as
// terminal for the unauthenticated attempt but not for the operation.
func (r *Response) IsChallenge() bool {
	return r.StatusCode == 401 || r.StatusCode == 407
}

// ParseResponse parses a raw SIP/2.0 response datagram.
func ParseResponse(raw []byte) (*Response, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !scanner.Scan() {
		return nil, coreerrors.Protocol("empty response")
	}
	statusLine := strings.TrimRight(scanner.Text(), "\r")
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "SIP/2.0") {
		return nil, coreerrors.Protocol("malformed status line: " + statusLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, coreerrors.Protocol("malformed status code: " + parts[1])
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	resp := &Response{StatusCode: code, Reason: reason, Headers: map[string][]string{}}

	var headerLines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		// unfold header continuation lines (leading whitespace).
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(headerLines) > 0 {
			headerLines[len(headerLines)-1] += " " + strings.TrimSpace(line)
			continue
		}
		headerLines = append(headerLines, line)
	}
	for _, line := range headerLines {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		resp.Headers[name] = append(resp.Headers[name], val)
	}

	// whatever remains after the blank line is the body; bufio.Scanner's
	// line splitting already consumed CRLFs so rejoin with \r\n.
	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	resp.Body = strings.Join(bodyLines, "\r\n")

	return resp, nil
}

// TagFromHeader extracts the tag= parameter from a To/From header value.
func TagFromHeader(value string) (string, bool) {
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "tag=") {
			return strings.Trim(part[len("tag="):], `"`), true
		}
	}
	return "", false
}
