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

// Package config loads the cmd/ entrypoint's process-level configuration:
// SIP server, account credentials, default codec and log level, layered
// from an optional YAML file and environment variables via viper. The
// library packages under pkg/sip, pkg/rtp and pkg/media stay
// configuration-agnostic; only cmd/ reads this.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the cmd/ entrypoint's process-level configuration.
type Config struct {
	// SIPServer is host[:port] of the registrar/proxy to register with.
	SIPServer string `mapstructure:"sip_server"`
	// Username and Password are the SIP account credentials used for
	// Digest auth. Password may instead be supplied via the
	// PLATYPUS_PASSWORD environment variable so it need not live in a
	// config file on disk.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// DefaultCodec is "pcmu" or "pcma"; it decides which payload type
	// this phone offers first in its SDP.
	DefaultCodec string `mapstructure:"default_codec"`

	// LogLevel is one of logrus's level names (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
}

// defaults mirrors what the teacher's config applies before layering the
// file/env/flag sources on top.
func defaults(v *viper.Viper) {
	v.SetDefault("default_codec", "pcmu")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from configFile (if non-empty), then overlays
// environment variables prefixed PLATYPUS_ (e.g. PLATYPUS_SIP_SERVER,
// PLATYPUS_PASSWORD), matching the teacher's pattern of env-overridable
// YAML config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("platypus")
	v.AutomaticEnv()
	for _, key := range []string{"sip_server", "username", "password", "default_codec", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if conf.SIPServer == "" {
		return nil, fmt.Errorf("config: sip_server is required")
	}
	if conf.Username == "" {
		return nil, fmt.Errorf("config: username is required")
	}
	return &conf, nil
}
