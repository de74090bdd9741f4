// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators, PCM encoders and fakes shared by the
// tests of several packages.
package utils

import (
	"encoding/binary"
	"math"
	"sync"

	"audioviz/internal/transport"
)

// MockTransport implements transport.Transport for testing. It keeps a
// private copy of the last frame it was handed.
type MockTransport struct {
	mu     sync.Mutex
	frames int
	last   transport.Frame
	closed bool

	// Err, when set, is returned by Send instead of recording the frame.
	Err error
}

// Send stores a copy of the frame for later inspection instead of transmitting.
func (m *MockTransport) Send(frame transport.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.frames++
	m.last = frame.Clone()
	return nil
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Last returns the most recent frame and the number of frames received.
func (m *MockTransport) Last() (transport.Frame, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.frames
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics with a
// peak amplitude of 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns size samples of a sinusoid with the given peak
// amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * amplitude
	}
	return buffer
}

// EncodePCM16 renders samples in [-1, 1] as interleaved signed 16-bit
// little-endian PCM, repeating each sample on every channel.
func EncodePCM16(samples []float64, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	out := make([]byte, 0, len(samples)*channels*2)
	for _, s := range samples {
		s = max(-1, min(1, s))
		v := int16(math.Round(s * math.MaxInt16))
		for range channels {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
