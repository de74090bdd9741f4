// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// malgoReadTimeout bounds how long Read waits for the device callback before
// reporting ErrNoData.
const malgoReadTimeout = 100 * time.Millisecond

// MalgoSource captures through miniaudio. The device delivers data on its
// own callback thread; chunks are handed to Read over a buffered channel.
type MalgoSource struct {
	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	chunks  chan []byte
	pending []byte
	open    bool
}

// NewMalgoSource returns an unopened source.
func NewMalgoSource() *MalgoSource {
	return &MalgoSource{}
}

// Open initialises a miniaudio context and starts a capture device in S16
// format with the configured rate, channel count and period.
func (s *MalgoSource) Open(cfg SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("%w: malgo source already open", ErrDevice)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize malgo context: %v", ErrDevice, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		freeMalgoContext(mctx)
		return fmt.Errorf("%w: failed to enumerate devices: %v", ErrDevice, err)
	}
	match, err := matchDevice(malgoDeviceInfos(infos), cfg.Device)
	if err != nil {
		freeMalgoContext(mctx)
		return err
	}
	deviceConfig.Capture.DeviceID = infos[match.Index].ID.Pointer()

	chunks := make(chan []byte, 16)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			chunk := make([]byte, len(input))
			copy(chunk, input)
			select {
			case chunks <- chunk:
			default:
				// Reader fell behind; drop the period.
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeMalgoContext(mctx)
		return fmt.Errorf("%w: failed to initialize device %q: %v", ErrDevice, match.Name, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeMalgoContext(mctx)
		return fmt.Errorf("%w: failed to start device %q: %v", ErrDevice, match.Name, err)
	}

	s.mctx = mctx
	s.device = device
	s.chunks = chunks
	s.pending = nil
	s.open = true
	return nil
}

// Read copies captured bytes into p. Leftover bytes from a chunk larger than
// p are returned by the next call.
func (s *MalgoSource) Read(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		s.mu.Unlock()
		return n, nil
	}
	chunks := s.chunks
	s.mu.Unlock()

	timer := time.NewTimer(malgoReadTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, ErrNoData
	case chunk := <-chunks:
		n := copy(p, chunk)
		if n < len(chunk) {
			s.mu.Lock()
			s.pending = chunk[n:]
			s.mu.Unlock()
		}
		return n, nil
	}
}

// Close stops the device and releases the context.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false

	var errs []error
	if err := s.device.Stop(); err != nil {
		errs = append(errs, err)
	}
	s.device.Uninit()
	if err := s.mctx.Uninit(); err != nil {
		errs = append(errs, err)
	}
	s.mctx.Free()
	s.device, s.mctx, s.pending = nil, nil, nil

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

func freeMalgoContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

func malgoDeviceInfos(infos []malgo.DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		out = append(out, DeviceInfo{
			Index: i,
			Name:  info.Name(),
			// miniaudio does not expose channel limits without a full query.
			MaxInputChannels: 2,
			IsDefault:        info.IsDefault > 0,
		})
	}
	return out
}

func malgoDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize malgo context: %v", ErrDevice, err)
	}
	defer freeMalgoContext(mctx)

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate devices: %v", ErrDevice, err)
	}
	return malgoDeviceInfos(infos), nil
}

var _ Source = (*MalgoSource)(nil)
