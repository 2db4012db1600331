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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/DieselFuel147/platypus-phone/pkg/audio"
	"github.com/DieselFuel147/platypus-phone/pkg/call"
	"github.com/DieselFuel147/platypus-phone/pkg/config"
	"github.com/DieselFuel147/platypus-phone/pkg/control"
	"github.com/DieselFuel147/platypus-phone/pkg/settings"
	"github.com/DieselFuel147/platypus-phone/pkg/sip"
	"github.com/DieselFuel147/platypus-phone/pkg/stats"
)

func main() {
	cmd := &cli.Command{
		Name:        "platypus-phone",
		Usage:       "Platypus Phone",
		Description: "Native SIP softphone core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file",
				Sources: cli.EnvVars("PLATYPUS_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			registerCommand(),
			callCommand(),
			listInputDevicesCommand(),
			listOutputDevicesCommand(),
			testMicrophoneCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// registerCommand registers the configured account and then blocks,
// mirroring the teacher's long-running service command, until an
// interrupt arrives, at which point it unregisters gracefully before
// exiting.
func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "register the configured SIP account and hold the registration",
		Action: func(ctx context.Context, c *cli.Command) error {
			surface, conf, err := newSurface(c)
			if err != nil {
				return err
			}
			surface.Init()
			if err := surface.Register(conf.SIPServer, conf.Username, conf.Password); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			logrus.Info("registered, holding until interrupted")
			waitForSignal(ctx)
			return surface.Shutdown(ctx)
		},
	}
}

// callCommand registers, places one outbound call, and holds the media
// path open until interrupted, then hangs up and unregisters.
func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "place an outbound call and hold it until interrupted",
		ArgsUsage: "<number>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input-device", Usage: "capture device name (default device if empty)"},
			&cli.StringFlag{Name: "output-device", Usage: "playback device name (default device if empty)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			number := c.Args().First()
			if number == "" {
				return fmt.Errorf("call: a number argument is required")
			}
			surface, conf, err := newSurface(c)
			if err != nil {
				return err
			}
			surface.Init()
			if err := surface.Register(conf.SIPServer, conf.Username, conf.Password); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			opts := control.CallOptions{
				InputDevice:  c.String("input-device"),
				OutputDevice: c.String("output-device"),
			}
			if err := surface.Call(number, opts); err != nil {
				_ = surface.Shutdown(ctx)
				return fmt.Errorf("call: %w", err)
			}
			logrus.Info("call active, holding until interrupted")
			waitForSignal(ctx)
			_ = surface.Hangup()
			return surface.Shutdown(ctx)
		},
	}
}

func listInputDevicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-input-devices",
		Usage: "list capture devices",
		Action: func(ctx context.Context, c *cli.Command) error {
			devices, err := audio.ListInputDevices()
			if err != nil {
				return err
			}
			printDevices(devices)
			return nil
		},
	}
}

func listOutputDevicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-output-devices",
		Usage: "list playback devices",
		Action: func(ctx context.Context, c *cli.Command) error {
			devices, err := audio.ListOutputDevices()
			if err != nil {
				return err
			}
			printDevices(devices)
			return nil
		},
	}
}

func testMicrophoneCommand() *cli.Command {
	return &cli.Command{
		Name:  "test-microphone",
		Usage: "capture briefly and report peak input level",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Usage: "capture device name (default device if empty)"},
			&cli.DurationFlag{Name: "duration", Usage: "how long to sample", Value: 3 * time.Second},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			result, err := audio.TestMicrophone(c.String("device"), call.DeviceSampleRate, c.Duration("duration"), logrus.NewEntry(logrus.StandardLogger()))
			if err != nil {
				return err
			}
			fmt.Printf("peak=%d frames=%d duration=%s\n", result.PeakAmplitude, result.FrameCount, result.Duration)
			return nil
		},
	}
}

func printDevices(devices []audio.DeviceInfo) {
	for _, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Printf("%s [%s]%s\n", d.Name, d.HostAPI, marker)
	}
}

// newSurface loads configuration, wires the transport, engine, monitor
// and settings store, and returns the control surface a command drives.
func newSurface(c *cli.Command) (*control.Surface, *config.Config, error) {
	conf, err := config.Load(c.Root().String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := applyLogLevel(conf.LogLevel); err != nil {
		return nil, nil, err
	}
	log := logrus.NewEntry(logrus.StandardLogger())

	tr, err := sip.NewTransport(log)
	if err != nil {
		return nil, nil, fmt.Errorf("open transport: %w", err)
	}
	engine, err := sip.NewEngine(tr, conf.SIPServer, conf.Username, conf.Password, log)
	if err != nil {
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	store, err := settings.Open()
	if err != nil {
		log.WithError(err).Warn("settings store unavailable, continuing without persistence")
		store = nil
	}
	mon := stats.NewMonitor(log)
	return control.New(engine, mon, store, conf.DefaultCodec, log), conf, nil
}

func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("config: invalid log_level %q: %w", level, err)
	}
	logrus.SetLevel(parsed)
	return nil
}

// waitForSignal blocks until SIGINT, SIGTERM or ctx is cancelled.
func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}
