// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the analyser.
const (
	// Audio defaults
	DefaultBackend         = BackendPortAudio
	DefaultDevice          = ""    // Backend default input device
	DefaultSampleRate      = 44100 // CD-quality audio
	DefaultChannels        = 1     // Mono audio
	DefaultFramesPerBuffer = 1024  // One window per read
	DefaultFFTSize         = 1024
	DefaultFFTWindow       = "none" // Rectangular, raw sample window
	DefaultGain            = 4.0
	DefaultGateThreshold   = 0.02

	// Analysis defaults
	DefaultBands        = 32
	DefaultSmoothing    = 0.80
	DefaultStartBin     = 2
	DefaultSpanFraction = 0.33

	// LED defaults
	DefaultLEDBus       = "/dev/spidev0.0"
	DefaultLEDDevices   = 4
	DefaultLEDIntensity = 3
	DefaultLEDSpeedHz   = 2_000_000
	DefaultLEDMode      = LEDModeSpectrum
	DefaultLEDInterval  = 33 * time.Millisecond
	DefaultLEDSweepStep = 40 * time.Millisecond

	// Hardware and processing limits
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxFFTSize    = 65536  // Ring buffer hard upper bound
	MaxIntensity  = 15
)

// Audio backends.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendFile      = "file"
)

// LED loop modes.
const (
	LEDModeSpectrum = "spectrum"
	LEDModePattern  = "pattern"
)

// Payloads carried by the UDP publisher.
const (
	PayloadBands      = "bands"
	PayloadMagnitudes = "magnitudes"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug        bool               `yaml:"debug"`     // Enable debug logging.
	LogLevel     string             `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Command      string             `yaml:"-"`         // Command selected on the command line ("run", "list", "version").
	Interactive  bool               `yaml:"-"`         // list: pick a device instead of printing.
	Audio        AudioConfig        `yaml:"audio"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	LED          LEDConfig          `yaml:"led"`
	Presentation PresentationConfig `yaml:"presentation"`
	Transport    TransportConfig    `yaml:"transport"`
	Status       StatusConfig       `yaml:"status"`
}

// AudioConfig holds capture and conversion settings.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // portaudio, malgo or file.
	Device          string  `yaml:"device"`            // Opaque device identifier; a path for the file backend.
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	Channels        int     `yaml:"channels"`          // Interleaved channel count.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames delivered by one blocking read.
	FFTSize         int     `yaml:"fft_size"`          // Transform window, also the ring capacity.
	FFTWindow       string  `yaml:"fft_window"`        // Window function name, "none" for rectangular.
	Gain            float64 `yaml:"gain"`              // Applied before clamping to [-1, 1].
	GateEnabled     bool    `yaml:"gate_enabled"`
	GateThreshold   float64 `yaml:"gate_threshold"`
	Loop            bool    `yaml:"loop"` // File backend: restart at end of file.
}

// AnalysisConfig holds band aggregation settings shared by every consumer.
type AnalysisConfig struct {
	Bands        int     `yaml:"bands"`
	Smoothing    float64 `yaml:"smoothing"`     // EMA factor applied to the previous value.
	StartBin     int     `yaml:"start_bin"`     // First bin that participates.
	SpanFraction float64 `yaml:"span_fraction"` // Fraction of the spectrum that participates.
}

// LEDConfig holds the dot-matrix chain settings.
type LEDConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Bus          string        `yaml:"bus"`
	Devices      int           `yaml:"devices"`   // Chips in the chain.
	Intensity    int           `yaml:"intensity"` // 0..15
	SpeedHz      int64         `yaml:"speed_hz"`
	FlipX        bool          `yaml:"flip_x"`
	FlipY        bool          `yaml:"flip_y"`
	ReverseChain bool          `yaml:"reverse_chain"`
	Mode         string        `yaml:"mode"` // spectrum or pattern.
	Bands        int           `yaml:"bands"`
	Interval     time.Duration `yaml:"interval"`
	SweepStep    time.Duration `yaml:"sweep_step"`
}

// Columns returns the number of LED columns across the chain.
func (c LEDConfig) Columns() int {
	return c.Devices * 8
}

// PresentationConfig holds the terminal renderer settings.
type PresentationConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Page            string        `yaml:"page"` // bars, peak or spectrum.
}

// TransportConfig holds settings related to sending processed data over the network.
type TransportConfig struct {
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`
	WebSocketAddress  string        `yaml:"websocket_address"`
	WebSocketInterval time.Duration `yaml:"websocket_interval"`
	UDPEnabled        bool          `yaml:"udp_enabled"`        // Enable sending packets over UDP.
	UDPTargetAddress  string        `yaml:"udp_target_address"` // Target address and port (e.g., "127.0.0.1:9090").
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	UDPPayload        string        `yaml:"udp_payload"`        // bands or magnitudes.
}

// StatusConfig holds the gRPC health service settings.
type StatusConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			Device:          DefaultDevice,
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			FFTSize:         DefaultFFTSize,
			FFTWindow:       DefaultFFTWindow,
			Gain:            DefaultGain,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			Bands:        DefaultBands,
			Smoothing:    DefaultSmoothing,
			StartBin:     DefaultStartBin,
			SpanFraction: DefaultSpanFraction,
		},
		LED: LEDConfig{
			Enabled:   true,
			Bus:       DefaultLEDBus,
			Devices:   DefaultLEDDevices,
			Intensity: DefaultLEDIntensity,
			SpeedHz:   DefaultLEDSpeedHz,
			Mode:      DefaultLEDMode,
			Bands:     DefaultBands,
			Interval:  DefaultLEDInterval,
			SweepStep: DefaultLEDSweepStep,
		},
		Presentation: PresentationConfig{
			Enabled:         true,
			RefreshInterval: 50 * time.Millisecond,
			Page:            "bars",
		},
		Transport: TransportConfig{
			WebSocketAddress:  "127.0.0.1:8080",
			WebSocketInterval: 33 * time.Millisecond,
			UDPTargetAddress:  "127.0.0.1:9090",
			UDPSendInterval:   33 * time.Millisecond, // ~30Hz.
			UDPPayload:        PayloadBands,
		},
		Status: StatusConfig{
			Address:      "127.0.0.1:50051",
			PollInterval: time.Second,
		},
	}
}
