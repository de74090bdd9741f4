// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures from a PortAudio input device in blocking mode.
// Each Read waits for one full buffer of FramesPerBuffer frames.
type PortAudioSource struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	open   bool
}

// NewPortAudioSource returns an unopened source.
func NewPortAudioSource() *PortAudioSource {
	return &PortAudioSource{}
}

// Open initialises PortAudio and starts an input stream on the configured
// device. The PortAudio subsystem is reference counted, so every Open is
// paired with a Terminate in Close.
func (s *PortAudioSource) Open(cfg SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("%w: portaudio source already open", ErrDevice)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: failed to initialize PortAudio: %v", ErrDevice, err)
	}

	device, err := paInputDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	buf := make([]int16, cfg.FramesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: open stream on %q: %v", ErrDevice, device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: start stream on %q: %v", ErrDevice, device.Name, err)
	}

	s.stream = stream
	s.buf = buf
	s.open = true
	return nil
}

// Read blocks for one buffer and writes it to p as little-endian bytes. An
// input overflow drops the buffer and reports ErrNoData.
func (s *PortAudioSource) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrClosed
	}

	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return 0, ErrNoData
		}
		return 0, err
	}

	n := min(len(s.buf), len(p)/2)
	for i, v := range s.buf[:n] {
		binary.LittleEndian.PutUint16(p[2*i:], uint16(v))
	}
	return 2 * n, nil
}

// Close stops the stream and releases PortAudio. It is safe to call on an
// unopened source.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	s.stream = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

// paInputDevice resolves an identifier against the input-capable devices.
// PortAudio must be initialised.
func paInputDevice(id string) (*portaudio.DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	infos := paDeviceInfos(all)
	match, err := matchDevice(infos, id)
	if err != nil {
		return nil, err
	}
	return all[match.Index], nil
}

// paDeviceInfos converts the input-capable devices, keeping PortAudio's
// index so the caller can map back.
func paDeviceInfos(all []*portaudio.DeviceInfo) []DeviceInfo {
	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}

	infos := make([]DeviceInfo, 0, len(all))
	for i, d := range all {
		if d.MaxInputChannels <= 0 {
			continue
		}
		infos = append(infos, DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         d.Name == defaultName,
		})
	}
	return infos
}

func portAudioDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize PortAudio: %v", ErrDevice, err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return paDeviceInfos(all), nil
}

var _ Source = (*PortAudioSource)(nil)
