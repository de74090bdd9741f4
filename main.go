// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"audioviz/cmd"
	"audioviz/internal/analysis"
	"audioviz/internal/audio"
	"audioviz/internal/config"
	"audioviz/internal/fft"
	"audioviz/internal/led"
	"audioviz/internal/log"
	"audioviz/internal/status"
	"audioviz/internal/transport"
	"audioviz/internal/transport/udp"
	"audioviz/internal/tui"
	"audioviz/pkg/build"
)

// headlessInterval is the cadence of the log summary when no terminal
// display runs.
const headlessInterval = time.Second

// main is the entry point for the spectrum analyser.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture pipeline
//   - Start the LED runner, network publishers and status service
//   - Run the terminal display until the user quits
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop every consumer before the producer
//   - Release the pipeline
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags; that is not fatal.
	if err := build.Initialize(); err != nil {
		log.Debugf("build information incomplete: %v", err)
	}

	cfg, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}
	if cfg.Debug {
		log.SetLevel(log.LevelDebug)
	}

	switch cfg.Command {
	case "":
		return
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags().String())
		return
	case cmd.CommandList:
		if err := listDevices(cfg); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func listDevices(cfg *config.Config) error {
	devices, err := audio.ListDevices(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	if !cfg.Interactive {
		fmt.Print(tui.RenderDeviceList(devices, -1))
		return nil
	}
	d, ok, err := tui.PickDevice(cfg.Audio.Backend, devices)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("--backend %s --device %d\n", cfg.Audio.Backend, d.Index)
	}
	return nil
}

// run wires the pipeline to its consumers and blocks until a signal arrives,
// the display exits or the pipeline fails.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window, err := fft.ParseWindow(cfg.Audio.FFTWindow)
	if err != nil {
		return err
	}
	src, err := audio.NewSource(cfg.Audio.Backend)
	if err != nil {
		return err
	}

	store := analysis.NewSpectrumStore(cfg.Audio.FFTSize/2+1, cfg.Audio.SampleRate)
	pipeline, err := audio.NewPipeline(audio.Config{
		Device:          cfg.Audio.Device,
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		FFTSize:         cfg.Audio.FFTSize,
		Window:          window,
		Gain:            cfg.Audio.Gain,
		GateEnabled:     cfg.Audio.GateEnabled,
		GateThreshold:   cfg.Audio.GateThreshold,
		Loop:            cfg.Audio.Loop,
	}, src, store)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warnf("closing pipeline: %v", err)
		}
	}()

	// The display owns the terminal; keep log lines out of it.
	display := cfg.Presentation.Enabled
	if display {
		path := filepath.Join(os.TempDir(), "audioviz.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		defer log.SetOutput(os.Stderr)
	}

	log.Infof("%s starting", build.GetBuildFlags().String())

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if err := pipeline.Start(ctx); err != nil {
		return err
	}

	bands := analysis.BandConfig{
		Count:        cfg.Analysis.Bands,
		Smoothing:    cfg.Analysis.Smoothing,
		StartBin:     cfg.Analysis.StartBin,
		SpanFraction: cfg.Analysis.SpanFraction,
	}

	runner, matrix := startLED(cfg, store, bands)
	if runner != nil {
		defer func() {
			if err := runner.Stop(); err != nil {
				log.Warnf("stopping led runner: %v", err)
			}
			if err := matrix.Close(); err != nil {
				log.Warnf("closing led matrix: %v", err)
			}
		}()
	}

	pager := tui.NewPager(tui.NewPages())
	if err := pager.SelectName(cfg.Presentation.Page); err != nil {
		log.Warnf("presentation: %v", err)
	}

	var publishers []*transport.Publisher
	defer func() {
		for _, p := range publishers {
			if err := p.Close(); err != nil {
				log.Warnf("%v", err)
			}
		}
	}()

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, true)
		ws.OnControl(func(msg transport.ControlMessage) {
			if msg.Page == nil {
				return
			}
			if err := pager.Select(*msg.Page); err != nil {
				log.Warnf("control message: %v", err)
			}
		})
		if err := ws.Start(); err != nil {
			log.Errorf("websocket disabled: %v", err)
		} else if p, err := transport.NewPublisher("websocket", cfg.Transport.WebSocketInterval, ws,
			analysis.NewFeed("websocket", store, bands)); err != nil {
			ws.Close()
			log.Errorf("websocket disabled: %v", err)
		} else {
			p.Start()
			publishers = append(publishers, p)
		}
	}

	if cfg.Transport.UDPEnabled {
		t, err := udp.NewTransport(cfg.Transport.UDPTargetAddress, udp.ParsePayload(cfg.Transport.UDPPayload))
		if err != nil {
			log.Errorf("udp disabled: %v", err)
		} else if p, err := transport.NewPublisher("udp", cfg.Transport.UDPSendInterval, t,
			analysis.NewFeed("udp", store, bands)); err != nil {
			t.Close()
			log.Errorf("udp disabled: %v", err)
		} else {
			p.Start()
			publishers = append(publishers, p)
		}
	}

	if !display {
		p, err := transport.NewPublisher("log", headlessInterval, transport.NewLoggingTransport(),
			analysis.NewFeed("log", store, bands))
		if err != nil {
			return err
		}
		p.Start()
		publishers = append(publishers, p)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status.PollInterval)
		srv.Register("capture", func() error {
			if err := pipeline.Err(); err != nil {
				return err
			}
			if s := pipeline.State(); s != audio.StateRecording {
				return fmt.Errorf("capture %s", s)
			}
			return nil
		})
		if runner != nil {
			srv.Register("led", func() error { return runner.Status().LastErr })
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(cfg.Status.Address); err != nil {
				log.Errorf("status service disabled: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			srv.Stop()
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-pipeline.Done():
			err := pipeline.Err()
			if errors.Is(err, io.EOF) {
				log.Infof("end of input")
				stop()
				return nil
			}
			if err != nil {
				return fmt.Errorf("capture stopped: %w", err)
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	if display {
		g.Go(func() error {
			feed := analysis.NewFeed("terminal", store, bands)
			err := tui.Run(gctx, tui.NewModel(feed, pipeline, pager, cfg.Presentation.RefreshInterval))
			// Quitting the display ends the program.
			stop()
			return err
		})
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	log.Infof("shutting down after %d frames", pipeline.Frames())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startLED opens the matrix and starts its runner. The LED output is
// optional: any failure is logged and the rest of the program carries on.
func startLED(cfg *config.Config, store *analysis.SpectrumStore, bands analysis.BandConfig) (*led.Runner, *led.Matrix) {
	if !cfg.LED.Enabled {
		return nil, nil
	}
	mode, err := led.ParseMode(cfg.LED.Mode)
	if err != nil {
		log.Warnf("led: %v", err)
	}

	bus, err := led.OpenSPI(cfg.LED.Bus, cfg.LED.SpeedHz)
	if err != nil {
		log.Warnf("led output disabled: %v", err)
		return nil, nil
	}
	matrix, err := led.NewMatrix(bus, cfg.LED.Devices, cfg.LED.Intensity, cfg.LED.ReverseChain)
	if err != nil {
		bus.Close()
		log.Warnf("led output disabled: %v", err)
		return nil, nil
	}

	bands.Count = cfg.LED.Bands
	runner, err := led.NewRunner(matrix, analysis.NewFeed("led", store, bands), led.RunnerConfig{
		Mode:      mode,
		Interval:  cfg.LED.Interval,
		SweepStep: cfg.LED.SweepStep,
		FlipX:     cfg.LED.FlipX,
		FlipY:     cfg.LED.FlipY,
	})
	if err != nil {
		matrix.Close()
		log.Warnf("led output disabled: %v", err)
		return nil, nil
	}
	runner.Start()
	log.Infof("led: %d devices on %s, %s mode", cfg.LED.Devices, cfg.LED.Bus, mode)
	return runner, matrix
}
