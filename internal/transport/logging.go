// SPDX-License-Identifier: MIT
package transport

import (
	"strings"
	"sync"

	applog "audioviz/internal/log"
)

var barGlyphs = []rune("▁▂▃▄▅▆▇█")

// LoggingTransport renders each frame's bands as a one-line bar graph in the
// log. It stands in for a renderer when the process runs headless.
type LoggingTransport struct {
	mu     sync.Mutex
	line   strings.Builder
	closed bool
	logger *applog.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{logger: applog.New("spectrum")}
}

// Send logs the frame's bands.
func (lt *LoggingTransport) Send(frame Frame) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.closed {
		return ErrClosed
	}

	lt.line.Reset()
	RenderBars(&lt.line, frame.Bands)
	beat := ""
	if frame.Beat {
		beat = " *"
	}
	lt.logger.Infof("#%d %s%s", frame.Seq, lt.line.String(), beat)
	return nil
}

// Close stops further logging.
func (lt *LoggingTransport) Close() error {
	lt.mu.Lock()
	lt.closed = true
	lt.mu.Unlock()
	return nil
}

// RenderBars writes one block glyph per value in [0, 1].
func RenderBars(b *strings.Builder, values []float64) {
	top := len(barGlyphs) - 1
	for _, v := range values {
		i := int(v*float64(top) + 0.5)
		b.WriteRune(barGlyphs[max(0, min(i, top))])
	}
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
