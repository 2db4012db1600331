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

package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	s := OpenAt(filepath.Join(t.TempDir(), "settings.json"))
	cur, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, Settings{}, cur)
}

func TestSaveCredentialsRoundTripsThroughObfuscation(t *testing.T) {
	s := OpenAt(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, s.SaveCredentials("sip.example.com", "alice", "s3cret!"))

	cur, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "sip.example.com", cur.Server)
	require.Equal(t, "alice", cur.Username)
	require.NotEqual(t, "s3cret!", cur.PasswordObfuscated)
	require.NotEmpty(t, cur.PasswordObfuscated)

	server, username, password, err := s.Credentials()
	require.NoError(t, err)
	require.Equal(t, "sip.example.com", server)
	require.Equal(t, "alice", username)
	require.Equal(t, "s3cret!", password)
}

func TestSaveCredentialsPreservesAudioDevices(t *testing.T) {
	s := OpenAt(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, s.SaveAudioDevices("Mic", "Speakers"))
	require.NoError(t, s.SaveCredentials("sip.example.com", "alice", "pw"))

	cur, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "Mic", cur.AudioInputDevice)
	require.Equal(t, "Speakers", cur.AudioOutputDevice)
}

func TestEmptyPasswordRoundTrips(t *testing.T) {
	s := OpenAt(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, s.SaveCredentials("sip.example.com", "alice", ""))

	_, _, password, err := s.Credentials()
	require.NoError(t, err)
	require.Equal(t, "", password)
}

func TestClearRemovesFileAndMissingClearIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := OpenAt(path)
	require.NoError(t, s.SaveCredentials("sip.example.com", "alice", "pw"))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	cur, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, Settings{}, cur)
}
