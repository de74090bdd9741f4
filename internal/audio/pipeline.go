// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"audioviz/internal/fft"
	"audioviz/internal/log"
)

var logger = log.New("capture")

// State is the lifecycle state of a Pipeline.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SpectrumSink receives every magnitude spectrum the pipeline computes.
// Publish must copy m; the pipeline reuses the slice for the next frame.
type SpectrumSink interface {
	Publish(m []float64)
	Reset()
}

// Config holds the capture and analysis parameters of a Pipeline.
type Config struct {
	Device          string
	SampleRate      float64
	Channels        int
	FramesPerBuffer int
	FFTSize         int
	Window          fft.Window
	Gain            float64
	GateEnabled     bool
	GateThreshold   float64
	Loop            bool
}

// SourceConfig returns the part of c a Source needs.
func (c Config) SourceConfig() SourceConfig {
	return SourceConfig{
		Device:          c.Device,
		SampleRate:      c.SampleRate,
		Channels:        c.Channels,
		FramesPerBuffer: c.FramesPerBuffer,
		Loop:            c.Loop,
	}
}

// Pipeline reads PCM from a Source, keeps the most recent FFTSize samples in
// a ring buffer and publishes one magnitude spectrum per frame read. The
// analysis cadence therefore follows the audio frame cadence.
//
// Start, Stop and Close may be called from any goroutine. The ring buffer,
// analyser and scratch buffers belong to the capture goroutine.
type Pipeline struct {
	cfg  Config
	src  Source
	sink SpectrumSink

	analyzer *fft.Analyzer
	ring     *RingBuffer
	gate     *Gate

	pcm     []byte
	samples []float64
	window  []float64

	mu      sync.Mutex // guards lifecycle transitions
	state   atomic.Int32
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	errMu   sync.Mutex
	lastErr error
	frames  atomic.Uint64
}

// NewPipeline allocates the transform plan and the ring buffer sized to
// cfg.FFTSize. The source is not opened until Start.
func NewPipeline(cfg Config, src Source, sink SpectrumSink) (*Pipeline, error) {
	if src == nil || sink == nil {
		return nil, fmt.Errorf("%w: pipeline needs a source and a sink", ErrInit)
	}
	if cfg.SampleRate <= 0 || cfg.Channels < 1 || cfg.FramesPerBuffer < 1 {
		return nil, fmt.Errorf("%w: sample rate %.0f, channels %d, frames per buffer %d",
			ErrInit, cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer)
	}
	if cfg.Gain == 0 {
		cfg.Gain = DefaultGain
	}

	analyzer, err := fft.NewAnalyzer(cfg.FFTSize, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	ring, err := NewRingBuffer(cfg.FFTSize)
	if err != nil {
		return nil, err
	}
	if ring.Cap() != cfg.FFTSize {
		return nil, fmt.Errorf("%w: window of %d samples exceeds ring capacity %d",
			ErrAllocation, cfg.FFTSize, ring.Cap())
	}

	gate := &Gate{}
	gate.SetThreshold(cfg.GateThreshold)
	if cfg.GateEnabled {
		gate.Enable()
	}

	done := make(chan struct{})
	close(done)

	return &Pipeline{
		cfg:      cfg,
		src:      src,
		sink:     sink,
		analyzer: analyzer,
		ring:     ring,
		gate:     gate,
		pcm:      make([]byte, cfg.SourceConfig().BytesPerBuffer()),
		samples:  make([]float64, cfg.FramesPerBuffer*cfg.Channels),
		window:   make([]float64, cfg.FFTSize),
		done:     done,
	}, nil
}

// Start opens the source and launches the capture goroutine. Starting a
// recording pipeline is a no-op.
//
// When the source cannot be opened the pipeline stays idle and the error
// wraps ErrDevice. If the source then also fails to release, the pipeline
// moves to StateError.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.State() == StateRecording {
		return nil
	}

	if err := p.src.Open(p.cfg.SourceConfig()); err != nil {
		openErr := err
		if !errors.Is(openErr, ErrDevice) {
			openErr = fmt.Errorf("%w: %w", ErrDevice, err)
		}
		if cerr := p.src.Close(); cerr != nil {
			p.setErr(errors.Join(openErr, cerr))
			p.state.Store(int32(StateError))
			logger.Errorf("Device setup failed and could not be released: %v", cerr)
		}
		return openErr
	}

	p.ring.Reset()
	p.setErr(nil)
	p.state.Store(int32(StateRecording))

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)

	logger.Infof("Capture started: %.0f Hz, %d channel(s), %d frames per buffer, window %d",
		p.cfg.SampleRate, p.cfg.Channels, p.cfg.FramesPerBuffer, p.cfg.FFTSize)
	return nil
}

func (p *Pipeline) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		n, err := p.src.Read(ctx, p.pcm)
		if n > 0 {
			p.process(p.pcm[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoData) {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		p.setErr(fmt.Errorf("%w: %w", ErrFatalRead, err))
		logger.Errorf("Capture loop stopped: %v", err)
		return
	}
}

// process converts one frame, writes it into the ring and publishes the
// spectrum of the current window.
func (p *Pipeline) process(pcm []byte) {
	n := ConvertS16LE(p.samples, pcm, p.cfg.Gain)
	batch := p.samples[:n]
	if !p.gate.Pass(batch) {
		clear(batch)
	}
	p.ring.Write(batch)
	p.ring.ReadLinearized(p.window)
	p.sink.Publish(p.analyzer.Transform(p.window))
	p.frames.Add(1)
}

// Stop ends the capture goroutine, waits for it and closes the source. It
// is a no-op unless the pipeline is recording. The sink is reset so readers
// see silence rather than the last frame.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Pipeline) stopLocked() error {
	if p.State() != StateRecording {
		return nil
	}
	p.state.Store(int32(StateIdle))
	p.cancel()
	<-p.done

	err := p.src.Close()
	p.sink.Reset()
	if err != nil {
		logger.Warnf("Failed to close source: %v", err)
		if !errors.Is(err, ErrDevice) {
			err = fmt.Errorf("%w: %w", ErrDevice, err)
		}
		return err
	}
	logger.Infof("Capture stopped after %d frames", p.frames.Load())
	return nil
}

// Close stops the pipeline if needed and releases the ring buffer. It is
// safe from any state; every later Start returns ErrClosed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	err := p.stopLocked()
	p.ring.Free()
	p.closed = true
	return err
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Err returns the error that stopped the last run, or nil.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.lastErr
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	p.lastErr = err
	p.errMu.Unlock()
}

// Frames returns the number of frames processed since construction.
func (p *Pipeline) Frames() uint64 { return p.frames.Load() }

// Gate returns the pipeline's noise gate.
func (p *Pipeline) Gate() *Gate { return p.gate }

// Bins returns the length of each published spectrum.
func (p *Pipeline) Bins() int { return p.analyzer.Bins() }

// Done returns a channel closed when the current capture goroutine exits,
// whether through Stop or a fatal read.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
