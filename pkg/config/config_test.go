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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "sip_server: pbx.example.com\nusername: alice\n")
	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "pcmu", conf.DefaultCodec)
	require.Equal(t, "info", conf.LogLevel)
}

func TestLoadRejectsMissingServer(t *testing.T) {
	path := writeTempConfig(t, "username: alice\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingUsername(t *testing.T) {
	path := writeTempConfig(t, "sip_server: pbx.example.com\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesPassword(t *testing.T) {
	path := writeTempConfig(t, "sip_server: pbx.example.com\nusername: alice\n")
	t.Setenv("PLATYPUS_PASSWORD", "s3cret")
	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "s3cret", conf.Password)
}
