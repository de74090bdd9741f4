// SPDX-License-Identifier: MIT
package audio

import "encoding/binary"

// DefaultGain is the input gain applied before clipping.
const DefaultGain = 4.0

// ConvertS16LE decodes interleaved signed 16-bit little-endian PCM into dst,
// multiplies by gain and then clamps to [-1, 1]. Applying the gain first is
// what gives quiet sources a usable level at the cost of hard clipping on
// loud ones. It returns the number of samples written, bounded by len(dst)
// and len(pcm)/2.
func ConvertS16LE(dst []float64, pcm []byte, gain float64) int {
	n := min(len(dst), len(pcm)/2)
	scale := gain / 32768.0
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) * scale
		dst[i] = min(max(v, -1), 1)
	}
	return n
}
