// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"audioviz/internal/config"
	"audioviz/pkg/build"
)

// Commands reported in Config.Command.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandVersion = "version"
)

// flags holds the raw flag values; only those the user set override the
// configuration file.
type flags struct {
	configPath      string
	backend         string
	device          string
	channels        int
	sampleRate      float64
	framesPerBuffer int
	fftSize         int
	ledBus          string
	noLED           bool
	noTUI           bool
	verbose         bool
	interactive     bool
}

// ParseArgs parses the command line, loads the configuration file and
// applies the flags that were given explicitly. Config.Command is empty when
// only help was printed.
func ParseArgs() (*config.Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var f flags
	command := ""

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List capture devices of the selected backend",
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandList
		},
	}
	listCmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false,
		"Pick a device interactively and print the matching --device flag")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandVersion
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "f", "",
		"Configuration file (default: config.yaml or audioviz.yaml if present)")

	// Audio source configuration
	pf.StringVarP(&f.backend, "backend", "B", config.DefaultBackend,
		"Capture backend: portaudio, malgo or file")
	pf.StringVarP(&f.device, "device", "d", config.DefaultDevice,
		"Input device index or name, or a path with the file backend. Use 'list' to see devices.")
	pf.IntVarP(&f.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	pf.Float64VarP(&f.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&f.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.IntVar(&f.fftSize, "fft-size", config.DefaultFFTSize,
		"Transform window in samples, a power of two")

	// Consumers
	pf.StringVar(&f.ledBus, "led-bus", config.DefaultLEDBus, "SPI port of the LED matrix")
	pf.BoolVar(&f.noLED, "no-led", false, "Disable the LED matrix")
	pf.BoolVar(&f.noTUI, "no-tui", false, "Run headless and log a bar line instead of the terminal display")

	// Debug Configuration
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if command == "" {
		return &config.Config{}, nil
	}

	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cfg, pf.Changed); err != nil {
		return nil, err
	}
	cfg.Command = command
	cfg.Interactive = f.interactive
	return cfg, nil
}

// apply copies the explicitly set flags into cfg and revalidates it.
func (f *flags) apply(cfg *config.Config, changed func(string) bool) error {
	if !changedAny(changed, "backend", "device", "channels", "sample-rate",
		"frames-per-buffer", "fft-size", "led-bus", "no-led", "no-tui", "verbose") {
		return nil
	}

	if changed("backend") {
		cfg.Audio.Backend = f.backend
	}
	if changed("device") {
		cfg.Audio.Device = f.device
	}
	if changed("channels") {
		cfg.Audio.Channels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("fft-size") {
		cfg.Audio.FFTSize = f.fftSize
	}
	if changed("led-bus") {
		cfg.LED.Bus = f.ledBus
	}
	if f.noLED {
		cfg.LED.Enabled = false
	}
	if f.noTUI {
		cfg.Presentation.Enabled = false
	}
	if f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("command line: %w", err)
	}
	return nil
}

func changedAny(changed func(string) bool, names ...string) bool {
	for _, n := range names {
		if changed(n) {
			return true
		}
	}
	return false
}
