// Copyright 2023 LiveKit, Inc.
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

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfUnwrapsThroughFmtErrorf(t *testing.T) {
	base := CallRejected(486, "Busy Here")
	wrapped := fmt.Errorf("invite failed: %w", base)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	require.Equal(t, KindCallRejected, kind)

	var ce *Error
	require.True(t, errors.As(wrapped, &ce))
	require.Equal(t, 486, ce.Status)
}

func TestErrorStringIncludesStatus(t *testing.T) {
	err := CallRejected(486, "Busy Here")
	require.Contains(t, err.Error(), "486")
	require.Contains(t, err.Error(), "Busy Here")
}

func TestIsMatchesByKindOnly(t *testing.T) {
	err := Timeout("register")
	require.True(t, errors.Is(err, &Error{Kind: KindTimeout}))
	require.False(t, errors.Is(err, &Error{Kind: KindAuthFailed}))
}
