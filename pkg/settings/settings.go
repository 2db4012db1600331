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

// Package settings persists the account and device preferences a
// desktop install of the phone remembers between runs: one JSON file
// in the user's per-OS config directory. Passwords are obfuscated, not
// encrypted, so the file can't be read at a glance but offers no
// protection against anyone with access to the account running this
// binary.
package settings

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// xorKey mirrors the fixed obfuscation key; it keeps a password out of
// plain sight in the settings file, nothing more.
var xorKey = []byte("PlatypusPhoneKey2024")

// Settings is the on-disk shape of one user's saved preferences.
type Settings struct {
	Server             string `json:"server"`
	Username           string `json:"username"`
	PasswordObfuscated string `json:"password_obfuscated"`
	AudioInputDevice   string `json:"audio_input_device"`
	AudioOutputDevice  string `json:"audio_output_device"`
}

// Store reads and writes one Settings file at a fixed path.
type Store struct {
	path string
}

// Open resolves the settings file path under the OS config directory
// and ensures the containing directory exists. It does not require the
// file itself to exist yet.
func Open() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("settings: resolve config dir: %w", err)
	}
	appDir := filepath.Join(dir, "platypus-phone")
	if err := os.MkdirAll(appDir, 0o700); err != nil {
		return nil, fmt.Errorf("settings: create config dir: %w", err)
	}
	return &Store{path: filepath.Join(appDir, "settings.json")}, nil
}

// OpenAt is Open with an explicit path, for tests and alternate profile
// directories.
func OpenAt(path string) *Store {
	return &Store{path: path}
}

// Load reads the settings file, returning zero-value Settings (not an
// error) when the file does not exist yet.
func (s *Store) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	return out, nil
}

// Save writes cur to disk, overwriting any existing file.
func (s *Store) Save(cur Settings) error {
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}

// SaveCredentials loads the existing file, overwrites the account
// fields, and saves, leaving device preferences untouched.
func (s *Store) SaveCredentials(server, username, password string) error {
	cur, err := s.Load()
	if err != nil {
		return err
	}
	cur.Server = server
	cur.Username = username
	cur.PasswordObfuscated = obfuscate(password)
	return s.Save(cur)
}

// Credentials returns the saved server, username and deobfuscated
// password in one call, since all three are always read together.
func (s *Store) Credentials() (server, username, password string, err error) {
	cur, err := s.Load()
	if err != nil {
		return "", "", "", err
	}
	pw, err := deobfuscate(cur.PasswordObfuscated)
	if err != nil {
		return "", "", "", err
	}
	return cur.Server, cur.Username, pw, nil
}

// SaveAudioDevices loads the existing file, overwrites the preferred
// device names, and saves, leaving account fields untouched.
func (s *Store) SaveAudioDevices(input, output string) error {
	cur, err := s.Load()
	if err != nil {
		return err
	}
	cur.AudioInputDevice = input
	cur.AudioOutputDevice = output
	return s.Save(cur)
}

// Clear deletes the settings file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("settings: remove %s: %w", s.path, err)
	}
	return nil
}

func obfuscate(password string) string {
	if password == "" {
		return ""
	}
	b := []byte(password)
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ xorKey[i%len(xorKey)]
	}
	return hex.EncodeToString(out)
}

func deobfuscate(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	b, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("settings: decode password: %w", err)
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ xorKey[i%len(xorKey)]
	}
	return string(out), nil
}
