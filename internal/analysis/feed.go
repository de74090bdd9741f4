// SPDX-License-Identifier: MIT
package analysis

import (
	"time"

	applog "audioviz/internal/log"
	"audioviz/internal/transport"
)

// Onset detection on the bass range.
const (
	beatRange     = 1
	beatThreshold = 0.3
	beatRatio     = 1.3
	beatCooldown  = 4
)

// Feed is one consumer's private view of the shared spectrum: its own copy of
// the magnitudes and its own smoothing state. A Feed must only be used from
// the consumer's goroutine.
type Feed struct {
	name   string
	src    MagnitudeSource
	agg    *BandAggregator
	beat   *BeatDetector
	mags   []float64
	energy []float64
	seq    uint64
	onset  bool
	errs   *applog.Throttle
	logger *applog.Logger
}

// NewFeed returns a Feed reading from src with its own BandAggregator.
func NewFeed(name string, src MagnitudeSource, cfg BandConfig) *Feed {
	return &Feed{
		name:   name,
		src:    src,
		agg:    NewBandAggregator(cfg),
		beat:   NewBeatDetector(beatThreshold, beatRatio, beatCooldown),
		mags:   make([]float64, src.Bins()),
		energy: make([]float64, len(DefaultRanges)),
		errs:   applog.NewThrottle(100),
		logger: applog.New("feed " + name),
	}
}

// Name returns the consumer name given at construction.
func (f *Feed) Name() string { return f.name }

// Count returns the number of bands produced by Bands.
func (f *Feed) Count() int { return f.agg.Count() }

// Bands copies the latest spectrum, advances this feed's smoothing and
// returns the band values. The slice is overwritten by the next call.
func (f *Feed) Bands() []float64 {
	seq, err := f.src.CopyInto(f.mags)
	if err != nil {
		if ok, n := f.errs.Allow(); ok {
			f.logger.Errorf("snapshot copy failed (%d times): %v", n, err)
		}
		clear(f.mags)
	}
	f.seq = seq

	RangeEnergies(f.energy, f.mags, DefaultRanges, f.src.BinWidth())
	f.onset = f.beat.Observe(f.energy[beatRange])

	return f.agg.Compute(f.mags)
}

// Magnitudes returns the spectrum copied by the last Bands call.
func (f *Feed) Magnitudes() []float64 { return f.mags }

// Energies returns the DefaultRanges energies from the last Bands call.
func (f *Feed) Energies() []float64 { return f.energy }

// Beat reports whether the last Bands call detected an onset.
func (f *Feed) Beat() bool { return f.onset }

// Seq returns the snapshot sequence number seen by the last Bands call.
func (f *Feed) Seq() uint64 { return f.seq }

// Reset clears the smoothing and onset state.
func (f *Feed) Reset() {
	f.agg.Reset()
	f.beat.Reset()
	f.onset = false
}

// Frame advances the feed and packages the result for a transport. The
// frame's slices alias the feed's buffers.
func (f *Feed) Frame() transport.Frame {
	bands := f.Bands()
	return transport.Frame{
		Seq:        f.seq,
		Timestamp:  time.Now(),
		Bands:      bands,
		Magnitudes: f.mags,
		Energy:     f.energy,
		Beat:       f.onset,
	}
}

var _ transport.FrameSource = (*Feed)(nil)
