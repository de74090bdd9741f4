// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// decodeChunk is the number of frames a decoder produces per call.
const decodeChunk = 4096

// pcmDecoder yields interleaved 16-bit samples in the file's own channel
// layout. next returns io.EOF once the stream is exhausted.
type pcmDecoder interface {
	format() (sampleRate, channels int)
	next() ([]int16, error)
	close() error
}

// FileSource plays an audio file as if it were a capture device. Reads are
// paced to the configured sample rate so downstream consumers see the same
// cadence as live input.
type FileSource struct {
	mu       sync.Mutex
	cfg      SourceConfig
	dec      pcmDecoder
	fileCh   int
	pending  []int16
	deadline time.Time
	open     bool
}

// NewFileSource returns an unopened source. The path is taken from
// SourceConfig.Device.
func NewFileSource() *FileSource {
	return &FileSource{}
}

// Open decodes the header of cfg.Device. The file's sample rate must match
// cfg.SampleRate; no resampling is performed.
func (s *FileSource) Open(cfg SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("%w: file source already open", ErrDevice)
	}

	dec, err := openDecoder(cfg.Device)
	if err != nil {
		return err
	}
	rate, ch := dec.format()
	if rate != int(math.Round(cfg.SampleRate)) {
		dec.close()
		return fmt.Errorf("%w: %s is sampled at %d Hz, configured rate is %.0f Hz",
			ErrDevice, filepath.Base(cfg.Device), rate, cfg.SampleRate)
	}
	if ch <= 0 {
		dec.close()
		return fmt.Errorf("%w: %s reports %d channels", ErrDevice, filepath.Base(cfg.Device), ch)
	}

	s.cfg = cfg
	s.dec = dec
	s.fileCh = ch
	s.pending = nil
	s.deadline = time.Time{}
	s.open = true
	return nil
}

// Read fills p with up to FramesPerBuffer frames. Output channel c carries
// file channel c, or the file's last channel when it has fewer. At end of
// file it restarts when looping, otherwise returns io.EOF after the final
// partial buffer.
func (s *FileSource) Read(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrClosed
	}

	outCh := s.cfg.Channels
	want := min(s.cfg.FramesPerBuffer, len(p)/(2*outCh))
	frames := 0
	rewound := false
	for frames < want {
		if len(s.pending) < s.fileCh {
			chunk, err := s.dec.next()
			if errors.Is(err, io.EOF) {
				if s.cfg.Loop && !rewound {
					if err := s.rewind(); err != nil {
						return 2 * frames * outCh, err
					}
					rewound = true
					continue
				}
				if frames == 0 {
					return 0, io.EOF
				}
				break
			}
			if err != nil {
				return 2 * frames * outCh, err
			}
			s.pending = chunk
			rewound = false
			continue
		}

		for c := range outCh {
			v := s.pending[min(c, s.fileCh-1)]
			binary.LittleEndian.PutUint16(p[2*(frames*outCh+c):], uint16(v))
		}
		s.pending = s.pending[s.fileCh:]
		frames++
	}

	if err := s.pace(ctx, frames); err != nil {
		return 0, err
	}
	return 2 * frames * outCh, nil
}

// pace blocks until the wall clock catches up with the audio delivered so
// far. A reader that falls behind by more than one buffer is resynchronised
// instead of bursting.
func (s *FileSource) pace(ctx context.Context, frames int) error {
	now := time.Now()
	if s.deadline.IsZero() || now.Sub(s.deadline) > s.bufferDuration(s.cfg.FramesPerBuffer) {
		s.deadline = now
	}
	s.deadline = s.deadline.Add(s.bufferDuration(frames))

	wait := time.Until(s.deadline)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *FileSource) bufferDuration(frames int) time.Duration {
	return time.Duration(float64(frames) / s.cfg.SampleRate * float64(time.Second))
}

func (s *FileSource) rewind() error {
	s.dec.close()
	dec, err := openDecoder(s.cfg.Device)
	if err != nil {
		s.open = false
		return err
	}
	s.dec = dec
	s.pending = nil
	return nil
}

// Close releases the decoder and its file.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	err := s.dec.close()
	s.dec = nil
	s.pending = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

// openDecoder picks a decoder from the file extension.
func openDecoder(path string) (pcmDecoder, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file backend needs a path", ErrDevice)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}

	var dec pcmDecoder
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		dec, err = newWAVDecoder(f)
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".ogg", ".oga":
		dec, err = newOggDecoder(f)
	default:
		err = fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrDevice, filepath.Base(path), err)
	}
	return dec, nil
}

type wavDecoder struct {
	file     *os.File
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	out      []int16
	bitDepth int
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to seek to PCM data: %w", err)
	}
	ch := int(dec.NumChans)
	return &wavDecoder{
		file: f,
		dec:  dec,
		buf: &goaudio.IntBuffer{
			Data:           make([]int, decodeChunk*ch),
			Format:         &goaudio.Format{NumChannels: ch, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: int(dec.BitDepth),
		},
		out:      make([]int16, decodeChunk*ch),
		bitDepth: int(dec.BitDepth),
	}, nil
}

func (d *wavDecoder) format() (int, int) { return int(d.dec.SampleRate), int(d.dec.NumChans) }

func (d *wavDecoder) next() ([]int16, error) {
	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read PCM buffer: %w", err)
	}
	if n == 0 {
		return nil, io.EOF
	}
	scale := 32767.0 / float64(goaudio.IntMaxSignedValue(d.bitDepth))
	for i, v := range d.buf.Data[:n] {
		if d.bitDepth == 16 {
			d.out[i] = int16(v)
			continue
		}
		d.out[i] = int16(math.Round(float64(v) * scale))
	}
	return d.out[:n], nil
}

func (d *wavDecoder) close() error { return d.file.Close() }

// mp3Decoder wraps go-mp3, which always produces 16-bit stereo.
type mp3Decoder struct {
	file *os.File
	dec  *mp3.Decoder
	raw  []byte
	out  []int16
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}
	return &mp3Decoder{
		file: f,
		dec:  dec,
		raw:  make([]byte, decodeChunk*4),
		out:  make([]int16, decodeChunk*2),
	}, nil
}

func (d *mp3Decoder) format() (int, int) { return d.dec.SampleRate(), 2 }

func (d *mp3Decoder) next() ([]int16, error) {
	n, err := io.ReadFull(d.dec, d.raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read MP3 data: %w", err)
	}
	n -= n % 4
	if n == 0 {
		return nil, io.EOF
	}
	for i := range n / 2 {
		d.out[i] = int16(binary.LittleEndian.Uint16(d.raw[2*i:]))
	}
	return d.out[:n/2], nil
}

func (d *mp3Decoder) close() error { return d.file.Close() }

type flacDecoder struct {
	file   *os.File
	stream *flac.Stream
	out    []int16
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create FLAC decoder: %w", err)
	}
	return &flacDecoder{file: f, stream: stream}, nil
}

func (d *flacDecoder) format() (int, int) {
	return int(d.stream.Info.SampleRate), int(d.stream.Info.NChannels)
}

func (d *flacDecoder) next() ([]int16, error) {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
	}

	ch := len(frame.Subframes)
	if ch == 0 {
		return nil, nil
	}
	count := len(frame.Subframes[0].Samples)
	if cap(d.out) < count*ch {
		d.out = make([]int16, count*ch)
	}
	out := d.out[:count*ch]

	shift := int(frame.BitsPerSample) - 16
	for c, sub := range frame.Subframes {
		for i, v := range sub.Samples[:count] {
			switch {
			case shift > 0:
				v >>= shift
			case shift < 0:
				v <<= -shift
			}
			out[i*ch+c] = int16(v)
		}
	}
	return out, nil
}

func (d *flacDecoder) close() error {
	err := d.stream.Close()
	return errors.Join(err, d.file.Close())
}

type oggDecoder struct {
	file *os.File
	dec  *oggvorbis.Reader
	raw  []float32
	out  []int16
}

func newOggDecoder(f *os.File) (*oggDecoder, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ogg Vorbis decoder: %w", err)
	}
	ch := dec.Channels()
	return &oggDecoder{
		file: f,
		dec:  dec,
		raw:  make([]float32, decodeChunk*ch),
		out:  make([]int16, decodeChunk*ch),
	}, nil
}

func (d *oggDecoder) format() (int, int) { return d.dec.SampleRate(), d.dec.Channels() }

func (d *oggDecoder) next() ([]int16, error) {
	n, err := d.dec.Read(d.raw)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode Ogg Vorbis data: %w", err)
	}
	n -= n % d.dec.Channels()
	for i, v := range d.raw[:n] {
		d.out[i] = int16(math.Round(float64(max(-1, min(1, v))) * 32767))
	}
	return d.out[:n], nil
}

func (d *oggDecoder) close() error { return d.file.Close() }

var _ Source = (*FileSource)(nil)
