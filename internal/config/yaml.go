// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"audioviz/internal/fft"
	applog "audioviz/internal/log"
	"audioviz/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// candidates are searched in order when LoadConfig is given an empty path.
var candidates = []string{
	"config.yaml",
	"audioviz.yaml",
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml", "audioviz.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("configuration: loaded %s", path)
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and enumerations, returning the first problem found.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q is not a known level", ErrInvalid, c.LogLevel)
	}

	a := c.Audio
	switch a.Backend {
	case BackendPortAudio, BackendMalgo:
	case BackendFile:
		if a.Device == "" {
			return fmt.Errorf("%w: audio.device must name a file for the file backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: audio.backend %q (want %s, %s or %s)",
			ErrInvalid, a.Backend, BackendPortAudio, BackendMalgo, BackendFile)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f outside [%d, %d]", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.Channels < 1 {
		return fmt.Errorf("%w: audio.channels must be at least 1", ErrInvalid)
	}
	if a.FramesPerBuffer < 1 {
		return fmt.Errorf("%w: audio.frames_per_buffer must be positive", ErrInvalid)
	}
	if !bitint.IsPowerOfTwo(a.FFTSize) {
		return fmt.Errorf("%w: audio.fft_size %d is not a power of two (try %d or %d)",
			ErrInvalid, a.FFTSize, bitint.PrevPowerOfTwo(a.FFTSize), bitint.NextPowerOfTwo(a.FFTSize))
	}
	if a.FFTSize > MaxFFTSize {
		return fmt.Errorf("%w: audio.fft_size %d exceeds %d", ErrInvalid, a.FFTSize, MaxFFTSize)
	}
	if _, err := fft.ParseWindow(a.FFTWindow); err != nil {
		return fmt.Errorf("%w: audio.fft_window: %v", ErrInvalid, err)
	}
	if a.Gain <= 0 {
		return fmt.Errorf("%w: audio.gain must be positive", ErrInvalid)
	}

	an := c.Analysis
	if an.Bands < 1 {
		return fmt.Errorf("%w: analysis.bands must be at least 1", ErrInvalid)
	}
	if an.Smoothing < 0 || an.Smoothing >= 1 {
		return fmt.Errorf("%w: analysis.smoothing %.2f outside [0, 1)", ErrInvalid, an.Smoothing)
	}
	if an.StartBin < 1 {
		return fmt.Errorf("%w: analysis.start_bin must exclude the DC bin", ErrInvalid)
	}
	if an.SpanFraction <= 0 || an.SpanFraction > 1 {
		return fmt.Errorf("%w: analysis.span_fraction %.2f outside (0, 1]", ErrInvalid, an.SpanFraction)
	}

	if c.LED.Enabled {
		l := c.LED
		if l.Bus == "" {
			return fmt.Errorf("%w: led.bus must be set when the LED matrix is enabled", ErrInvalid)
		}
		if l.Devices < 1 {
			return fmt.Errorf("%w: led.devices must be at least 1", ErrInvalid)
		}
		if l.Bands < 1 {
			return fmt.Errorf("%w: led.bands must be at least 1", ErrInvalid)
		}
		if l.SpeedHz <= 0 {
			return fmt.Errorf("%w: led.speed_hz must be positive", ErrInvalid)
		}
		if l.Mode != LEDModeSpectrum && l.Mode != LEDModePattern {
			return fmt.Errorf("%w: led.mode %q (want %s or %s)", ErrInvalid, l.Mode, LEDModeSpectrum, LEDModePattern)
		}
		if l.Interval <= 0 || l.SweepStep <= 0 {
			return fmt.Errorf("%w: led intervals must be positive", ErrInvalid)
		}
	}

	if c.Presentation.Enabled && c.Presentation.RefreshInterval <= 0 {
		return fmt.Errorf("%w: presentation.refresh_interval must be positive", ErrInvalid)
	}

	t := c.Transport
	if t.WebSocketEnabled {
		if err := validateAddress("transport.websocket_address", t.WebSocketAddress); err != nil {
			return err
		}
		if t.WebSocketInterval <= 0 {
			return fmt.Errorf("%w: transport.websocket_interval must be positive", ErrInvalid)
		}
	}
	if t.UDPEnabled {
		if err := validateAddress("transport.udp_target_address", t.UDPTargetAddress); err != nil {
			return err
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalid)
		}
		if t.UDPPayload != PayloadBands && t.UDPPayload != PayloadMagnitudes {
			return fmt.Errorf("%w: transport.udp_payload %q (want %s or %s)", ErrInvalid, t.UDPPayload, PayloadBands, PayloadMagnitudes)
		}
	}

	if c.Status.Enabled {
		if err := validateAddress("status.address", c.Status.Address); err != nil {
			return err
		}
		if c.Status.PollInterval <= 0 {
			return fmt.Errorf("%w: status.poll_interval must be positive", ErrInvalid)
		}
	}

	return nil
}

func validateAddress(key, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%w: %s %q appears invalid: %v", ErrInvalid, key, addr, err)
	}
	return nil
}

// applyEnvOverrides replaces file values with ENV_* variables when they are
// set and parse cleanly. Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		envBool("ENV_DEBUG", val, &c.Debug)
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(val)
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		c.Audio.Backend = strings.ToLower(val)
		applog.Infof("configuration: Overriding audio.backend from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		c.Audio.Device = val
		applog.Infof("configuration: Overriding audio.device from env: %s", val)
	}

	// ENV_LED_{...}
	if val, ok := os.LookupEnv("ENV_LED_ENABLED"); ok {
		envBool("ENV_LED_ENABLED", val, &c.LED.Enabled)
	}
	if val, ok := os.LookupEnv("ENV_LED_BUS"); ok {
		c.LED.Bus = val
		applog.Infof("configuration: Overriding led.bus from env: %s", val)
	}

	// ENV_UDP_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		envBool("ENV_UDP_ENABLED", val, &c.Transport.UDPEnabled)
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("configuration: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}

func envBool(name, val string, dst *bool) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		applog.Warnf("configuration: Ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = b
	applog.Infof("configuration: Overriding %s from env: %v", name, b)
}
