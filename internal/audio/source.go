// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// SourceConfig describes the stream a Source must deliver.
type SourceConfig struct {
	Device          string  // Opaque device identifier; a path for the file backend.
	SampleRate      float64 // Hz.
	Channels        int     // Interleaved channel count.
	FramesPerBuffer int     // Frames delivered by one Read.
	Loop            bool    // File backend: restart at end of file.
}

// BytesPerBuffer returns the size of one full read in bytes.
func (c SourceConfig) BytesPerBuffer() int {
	return c.FramesPerBuffer * c.Channels * 2
}

// Source delivers interleaved signed 16-bit little-endian PCM.
//
// Read blocks until a frame is available and returns the number of bytes
// written to p. It returns ErrNoData when nothing arrived yet and the caller
// should retry; any other error ends the stream.
type Source interface {
	Open(cfg SourceConfig) error
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}

// DeviceInfo describes one capture device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// Backend names accepted by NewSource and ListDevices.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendFile      = "file"
)

// NewSource returns an unopened Source for the named backend.
func NewSource(backend string) (Source, error) {
	switch strings.ToLower(backend) {
	case BackendPortAudio, "":
		return NewPortAudioSource(), nil
	case BackendMalgo:
		return NewMalgoSource(), nil
	case BackendFile:
		return NewFileSource(), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInit, backend)
	}
}

// ListDevices enumerates capture devices of the named backend.
func ListDevices(backend string) ([]DeviceInfo, error) {
	switch strings.ToLower(backend) {
	case BackendPortAudio, "":
		return portAudioDevices()
	case BackendMalgo:
		return malgoDevices()
	case BackendFile:
		return nil, fmt.Errorf("%w: the file backend reads a path, it has no devices", ErrDevice)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInit, backend)
	}
}

// matchDevice picks a device by numeric index or case-insensitive name
// substring. An empty or "default" id selects the default device.
func matchDevice(devices []DeviceInfo, id string) (DeviceInfo, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, "default") {
		for _, d := range devices {
			if d.IsDefault {
				return d, nil
			}
		}
		if len(devices) > 0 {
			return devices[0], nil
		}
		return DeviceInfo{}, fmt.Errorf("%w: no capture devices", ErrDevice)
	}

	if idx, err := strconv.Atoi(id); err == nil {
		for _, d := range devices {
			if d.Index == idx {
				return d, nil
			}
		}
		return DeviceInfo{}, fmt.Errorf("%w: no capture device with index %d", ErrDevice, idx)
	}

	want := strings.ToLower(id)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no capture device matching %q", ErrDevice, id)
}
