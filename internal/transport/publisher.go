// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applog "audioviz/internal/log"
)

// Publisher periodically pulls a frame from its source and hands it to a
// transport. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	name      string
	transport Transport
	source    FrameSource
	interval  time.Duration

	ticker   *time.Ticker   // Ticker that triggers publishing.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	sent   atomic.Uint64
	failed atomic.Uint64
	errs   *applog.Throttle
	logger *applog.Logger
}

// NewPublisher creates a publisher. If the interval is invalid (<= 0) it
// defaults to 33ms (~30Hz).
func NewPublisher(name string, interval time.Duration, t Transport, src FrameSource) (*Publisher, error) {
	if t == nil {
		return nil, errors.New("publisher: transport cannot be nil")
	}
	if src == nil {
		return nil, errors.New("publisher: frame source cannot be nil")
	}

	logger := applog.New("publisher " + name)
	if interval <= 0 {
		interval = 33 * time.Millisecond
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}

	return &Publisher{
		name:      name,
		transport: t,
		source:    src,
		interval:  interval,
		errs:      applog.NewThrottle(100),
		logger:    logger,
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.logger.Warnf("Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Captured so the goroutine never reads the fields Stop resets.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.logger.Debugf("started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit. It is safe
// to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debugf("stopped after %d frames (%d failed)", p.sent.Load(), p.failed.Load())
	return nil
}

func (p *Publisher) publish() {
	frame := p.source.Frame()
	if err := p.transport.Send(frame); err != nil {
		p.failed.Add(1)
		if ok, n := p.errs.Allow(); ok {
			p.logger.Errorf("send failed (%d times): %v", n, err)
		}
		return
	}
	p.errs.Reset()
	p.sent.Add(1)
}

// Sent returns the number of frames delivered successfully.
func (p *Publisher) Sent() uint64 { return p.sent.Load() }

// Close stops the publisher and closes its transport.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	if err := p.transport.Close(); err != nil {
		return fmt.Errorf("publisher %s: %w", p.name, err)
	}
	return nil
}
