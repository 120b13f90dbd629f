/*
Copyright © 2023 Rob Haswell <rob@haswell.co.uk>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the sbuscli TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robhaswell/sbuscli/link"
	"github.com/robhaswell/sbuscli/sbus"
)

// Default channel bounds of FrSky and Futaba receivers, which map
// 988..2012us PWM onto 172..1811.
const (
	DefaultChannelMin uint16 = 172
	DefaultChannelMax uint16 = 1811
	DefaultRateHz            = 70
)

type Config struct {
	Codec   CodecConfig   `toml:"codec"`
	Serial  SerialConfig  `toml:"serial"`
	Send    SendConfig    `toml:"send"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

type CodecConfig struct {
	ChannelMin uint16 `toml:"channel_min"`
	ChannelMax uint16 `toml:"channel_max"`
}

type SerialConfig struct {
	Port          string `toml:"port"`
	BaudRate      int    `toml:"baud_rate"`
	ReadTimeoutMS int    `toml:"read_timeout_ms"`
}

// SendConfig is the channel set transmitted by the send command.
// Channels not listed are sent at the midpoint of the codec bounds.
type SendConfig struct {
	RateHz    int      `toml:"rate_hz"`
	Channels  []uint16 `toml:"channels"`
	Channel17 bool     `toml:"channel17"`
	Channel18 bool     `toml:"channel18"`
	LostFrame bool     `toml:"lost_frame"`
	FailSafe  bool     `toml:"fail_safe"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus endpoint when set, e.g. "127.0.0.1:9110".
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Codec: CodecConfig{
			ChannelMin: DefaultChannelMin,
			ChannelMax: DefaultChannelMax,
		},
		Serial: SerialConfig{
			BaudRate:      link.DefaultBaudRate,
			ReadTimeoutMS: 1000,
		},
		Send: SendConfig{
			RateHz: DefaultRateHz,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot check by type alone.
func (c Config) Validate() error {
	var errs []error
	if c.Codec.ChannelMin > c.Codec.ChannelMax {
		errs = append(errs, fmt.Errorf("codec: channel_min %d above channel_max %d", c.Codec.ChannelMin, c.Codec.ChannelMax))
	}
	if c.Codec.ChannelMax > sbus.ChannelMax {
		errs = append(errs, fmt.Errorf("codec: channel_max %d does not fit in 11 bits", c.Codec.ChannelMax))
	}
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial: invalid baud_rate %d", c.Serial.BaudRate))
	}
	if c.Serial.ReadTimeoutMS < 0 {
		errs = append(errs, errors.New("serial: negative read_timeout_ms"))
	}
	if c.Send.RateHz <= 0 || c.Send.RateHz > 1000 {
		errs = append(errs, fmt.Errorf("send: rate_hz %d outside 1..1000", c.Send.RateHz))
	}
	if len(c.Send.Channels) > sbus.NumChannels {
		errs = append(errs, fmt.Errorf("send: %d channels given, at most %d", len(c.Send.Channels), sbus.NumChannels))
	}
	for i, v := range c.Send.Channels {
		if v > sbus.ChannelMax {
			errs = append(errs, fmt.Errorf("send: channel %d value %d does not fit in 11 bits", i+1, v))
		}
	}
	return errors.Join(errs...)
}

// NewCodec returns the frame codec for the configured bounds.
func (c Config) NewCodec() sbus.Codec {
	return sbus.New(c.Codec.ChannelMin, c.Codec.ChannelMax)
}

// LinkOptions returns the serial options for the configured port.
func (c Config) LinkOptions() link.Options {
	return link.Options{
		PortName:    c.Serial.Port,
		BaudRate:    c.Serial.BaudRate,
		ReadTimeout: time.Duration(c.Serial.ReadTimeoutMS) * time.Millisecond,
	}
}

// Interval is the time between transmitted frames.
func (s SendConfig) Interval() time.Duration {
	return time.Second / time.Duration(s.RateHz)
}

// Frame builds the frame to transmit, filling unlisted channels with mid.
func (s SendConfig) Frame(mid uint16) sbus.ChannelFrame {
	f := sbus.ChannelFrame{
		Channel17: s.Channel17,
		Channel18: s.Channel18,
		LostFrame: s.LostFrame,
		FailSafe:  s.FailSafe,
	}
	for i := range f.Channels {
		f.Channels[i] = mid
	}
	copy(f.Channels[:], s.Channels)
	return f
}
