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

// Package audio wraps the host's capture and playback devices behind a
// small, codec-agnostic streaming API: device enumeration, a bounded
// drop-oldest capture buffer, and a playback buffer fed from the far
// end of a call.
package audio

import (
	"fmt"
	"runtime"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes one capture or playback device the host exposes.
type DeviceInfo struct {
	Name      string
	IsDefault bool
	HostAPI   string
}

func newContext() (*malgo.AllocatedContext, error) {
	return malgo.InitContext(nil, malgo.ContextConfig{}, nil)
}

// ListInputDevices enumerates available capture devices.
func ListInputDevices() ([]DeviceInfo, error) {
	return listDevices(malgo.Capture)
}

// ListOutputDevices enumerates available playback devices.
func ListOutputDevices() ([]DeviceInfo, error) {
	return listDevices(malgo.Playback)
}

func listDevices(kind malgo.DeviceType) ([]DeviceInfo, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	raw, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}

	api := hostAPIName()
	out := make([]DeviceInfo, 0, len(raw))
	for _, d := range raw {
		out = append(out, DeviceInfo{
			Name:      d.Name(),
			IsDefault: d.IsDefault != 0,
			HostAPI:   api,
		})
	}
	return out, nil
}

// findDeviceID resolves a device by its enumerated name so callers can
// open a stream on a specific device instead of the system default.
func findDeviceID(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (*malgo.DeviceID, error) {
	devices, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name() == name {
			id := d.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("audio: device %q not found", name)
}

// hostAPIName reports the native audio backend malgo's default backend
// list resolves to on this platform, for display purposes only.
func hostAPIName() string {
	switch runtime.GOOS {
	case "darwin":
		return "CoreAudio"
	case "windows":
		return "WASAPI"
	default:
		return "ALSA"
	}
}
