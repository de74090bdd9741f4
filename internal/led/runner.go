// SPDX-License-Identifier: MIT
package led

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "audioviz/internal/log"
)

var logger = applog.New("led")

// Mode selects what the runner shows.
type Mode int

const (
	// ModeSpectrum shows one band per column.
	ModeSpectrum Mode = iota
	// ModePattern sweeps a test column regardless of audio.
	ModePattern
)

func (m Mode) String() string {
	if m == ModePattern {
		return "pattern"
	}
	return "spectrum"
}

// ParseMode accepts "spectrum" or "pattern".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spectrum", "":
		return ModeSpectrum, nil
	case "pattern":
		return ModePattern, nil
	default:
		return ModeSpectrum, fmt.Errorf("unknown led mode %q", s)
	}
}

// BandSource yields normalised band values in [0, 1], one per column.
type BandSource interface {
	Bands() []float64
}

// RunnerConfig controls the refresh loop.
type RunnerConfig struct {
	Mode      Mode
	Interval  time.Duration // Refresh period.
	SweepStep time.Duration // Pattern mode: time each column stays lit.
	FlipX     bool
	FlipY     bool
}

// Status is a snapshot of the runner for status queries.
type Status struct {
	Running bool
	Mode    Mode
	Frames  uint64
	Failed  uint64
	LastErr error
}

// Runner refreshes a Matrix on a fixed period from its own goroutine. Render
// failures are logged and counted; the loop keeps going so a flaky bus does
// not take the rest of the process down.
type Runner struct {
	matrix  *Matrix
	src     BandSource
	cfg     RunnerConfig
	heights []int
	started time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	frames  atomic.Uint64
	failed  atomic.Uint64
	errMu   sync.Mutex
	lastErr error
	errs    *applog.Throttle
}

// NewRunner returns a stopped runner. src may be nil in pattern mode.
func NewRunner(m *Matrix, src BandSource, cfg RunnerConfig) (*Runner, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: runner needs a matrix", ErrDevice)
	}
	if cfg.Mode == ModeSpectrum && src == nil {
		return nil, fmt.Errorf("spectrum mode needs a band source")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 33 * time.Millisecond
		logger.Warnf("invalid interval, defaulting to %s", cfg.Interval)
	}
	if cfg.SweepStep <= 0 {
		cfg.SweepStep = 40 * time.Millisecond
	}
	return &Runner{
		matrix:  m,
		src:     src,
		cfg:     cfg,
		heights: make([]int, m.Columns()),
		errs:    applog.NewThrottle(100),
	}, nil
}

// Start launches the refresh goroutine. Calling Start while running is a
// no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.ticker != nil {
		r.mu.Unlock()
		return
	}
	r.ticker = time.NewTicker(r.cfg.Interval)
	r.doneChan = make(chan struct{})
	r.stopOnce = sync.Once{}
	r.started = time.Now()
	ticker, doneChan := r.ticker, r.doneChan
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger.Infof("Refreshing %d columns in %s mode every %s", len(r.heights), r.cfg.Mode, r.cfg.Interval)
		for {
			select {
			case now := <-ticker.C:
				r.tick(now)
			case <-doneChan:
				return
			}
		}
	}()
}

func (r *Runner) tick(now time.Time) {
	switch r.cfg.Mode {
	case ModePattern:
		Pattern(r.heights, int(now.Sub(r.started)/r.cfg.SweepStep))
	default:
		bands := r.src.Bands()
		for x := range r.heights {
			if x < len(bands) {
				r.heights[x] = ToHeight(bands[x])
			} else {
				r.heights[x] = 0
			}
		}
	}

	if err := r.matrix.Render(r.heights, r.cfg.FlipX, r.cfg.FlipY); err != nil {
		r.failed.Add(1)
		r.setErr(err)
		if ok, n := r.errs.Allow(); ok {
			logger.Errorf("Render failed (%d times): %v", n, err)
		}
		return
	}
	r.errs.Reset()
	r.setErr(nil)
	r.frames.Add(1)
}

// Stop signals the refresh goroutine, waits for it and blanks the display.
// It is safe to call Stop multiple times.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.ticker == nil {
		r.mu.Unlock()
		return nil
	}
	r.stopOnce.Do(func() {
		close(r.doneChan)
		r.ticker.Stop()
		r.ticker = nil
	})
	r.mu.Unlock()

	r.wg.Wait()
	logger.Debugf("Stopped after %d frames (%d failed)", r.frames.Load(), r.failed.Load())
	return r.matrix.Clear()
}

// Status reports the runner's progress and the last render error, if the
// most recent frame failed.
func (r *Runner) Status() Status {
	r.mu.Lock()
	running := r.ticker != nil
	r.mu.Unlock()

	r.errMu.Lock()
	defer r.errMu.Unlock()
	return Status{
		Running: running,
		Mode:    r.cfg.Mode,
		Frames:  r.frames.Load(),
		Failed:  r.failed.Load(),
		LastErr: r.lastErr,
	}
}

func (r *Runner) setErr(err error) {
	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()
}
