// SPDX-License-Identifier: MIT
package log

import (
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSetLevelFiltersLowerLevels(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelWarn)
	if shouldLog(LevelInfo) {
		t.Error("INFO should be filtered at WARN level")
	}
	if !shouldLog(LevelError) {
		t.Error("ERROR should pass at WARN level")
	}
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(3)

	var allowed []uint64
	for range 7 {
		if ok, n := th.Allow(); ok {
			allowed = append(allowed, n)
		}
	}

	want := []uint64{1, 3, 6}
	if len(allowed) != len(want) {
		t.Fatalf("allowed %v, want %v", allowed, want)
	}
	for i := range want {
		if allowed[i] != want[i] {
			t.Errorf("allowed[%d] = %d, want %d", i, allowed[i], want[i])
		}
	}

	th.Reset()
	if ok, n := th.Allow(); !ok || n != 1 {
		t.Errorf("after Reset Allow() = %v, %d; want true, 1", ok, n)
	}
}

func TestSetOutput(t *testing.T) {
	var buf strings.Builder
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	prev := GetLevel()
	defer SetLevel(prev)
	SetLevel(LevelDebug)

	New("capture").Warnf("device %s gone", "hw:1")
	if got := buf.String(); !strings.Contains(got, "[WARN]  capture: device hw:1 gone") {
		t.Errorf("output = %q", got)
	}
}
