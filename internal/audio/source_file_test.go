// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const fixtureRate = 8000

// writeWAV writes a 16-bit fixture whose frame i carries value i*10 on
// channel 0 and -(i*10) on channel 1.
func writeWAV(t *testing.T, frames, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, fixtureRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: fixtureRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	for i := range frames {
		for c := range channels {
			v := i * 10
			if c == 1 {
				v = -v
			}
			buf.Data[i*channels+c] = v
		}
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func decode16(p []byte) []int16 {
	out := make([]int16, len(p)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[2*i:]))
	}
	return out
}

func openFixture(t *testing.T, cfg SourceConfig) *FileSource {
	t.Helper()
	src := NewFileSource()
	if err := src.Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestFileSourceReadsWAVUntilEOF(t *testing.T) {
	path := writeWAV(t, 200, 1)
	src := openFixture(t, SourceConfig{Device: path, SampleRate: fixtureRate, Channels: 2, FramesPerBuffer: 64})

	ctx := context.Background()
	p := make([]byte, 64*2*2)
	var got []int16
	for {
		n, err := src.Read(ctx, p)
		got = append(got, decode16(p[:n])...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if len(got) != 200*2 {
		t.Fatalf("read %d samples, want %d", len(got), 400)
	}
	for i := range 200 {
		want := int16(i * 10)
		if got[2*i] != want || got[2*i+1] != want {
			t.Fatalf("frame %d = (%d, %d), want mono sample %d on both channels", i, got[2*i], got[2*i+1], want)
		}
	}
}

func TestFileSourceKeepsLeadingChannels(t *testing.T) {
	path := writeWAV(t, 32, 2)
	src := openFixture(t, SourceConfig{Device: path, SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: 32})

	p := make([]byte, 32*2)
	n, err := src.Read(context.Background(), p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got := decode16(p[:n])
	if len(got) != 32 {
		t.Fatalf("read %d samples, want 32", len(got))
	}
	for i, v := range got {
		if v != int16(i*10) {
			t.Fatalf("sample %d = %d, want left channel value %d", i, v, i*10)
		}
	}
}

func TestFileSourceLoops(t *testing.T) {
	path := writeWAV(t, 200, 1)
	src := openFixture(t, SourceConfig{Device: path, SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: 64, Loop: true})

	p := make([]byte, 64*2)
	var got []int16
	for range 4 {
		n, err := src.Read(context.Background(), p)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, decode16(p[:n])...)
	}

	if len(got) != 256 {
		t.Fatalf("read %d samples, want 256", len(got))
	}
	if got[199] != 1990 || got[200] != 0 || got[201] != 10 {
		t.Errorf("wrap = %v, want [1990 0 10]", got[199:202])
	}
}

func TestFileSourceOpenErrors(t *testing.T) {
	wavPath := writeWAV(t, 16, 1)
	other := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(other, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  SourceConfig
	}{
		{"empty path", SourceConfig{SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: 16}},
		{"missing file", SourceConfig{Device: filepath.Join(t.TempDir(), "nope.wav"), SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: 16}},
		{"unsupported extension", SourceConfig{Device: other, SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: 16}},
		{"sample rate mismatch", SourceConfig{Device: wavPath, SampleRate: 44100, Channels: 1, FramesPerBuffer: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewFileSource().Open(tt.cfg); !errors.Is(err, ErrDevice) {
				t.Errorf("Open() error = %v, want ErrDevice", err)
			}
		})
	}
}

func TestFileSourceClosed(t *testing.T) {
	path := writeWAV(t, 16, 1)
	src := NewFileSource()
	if err := src.Open(SourceConfig{Device: path, SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: 16}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := src.Read(context.Background(), make([]byte, 32)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close error = %v, want ErrClosed", err)
	}
}

func TestFileSourceReadHonoursCancel(t *testing.T) {
	path := writeWAV(t, fixtureRate, 1)
	// One buffer is a full second of audio, so the first Read has to wait.
	src := openFixture(t, SourceConfig{Device: path, SampleRate: fixtureRate, Channels: 1, FramesPerBuffer: fixtureRate})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Read(ctx, make([]byte, fixtureRate*2)); !errors.Is(err, context.Canceled) {
		t.Errorf("Read error = %v, want context.Canceled", err)
	}
}
