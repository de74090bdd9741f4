// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to validate and
suggest transform window sizes.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations

Usage:

	// Reject a window that the transform plan cannot use
	if !bitint.IsPowerOfTwo(cfg.FFTSize) {
		return fmt.Errorf("try %d", bitint.NextPowerOfTwo(cfg.FFTSize))
	}

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved: bits.Len(7) = 3 and 1<<3 = 8, whereas
bits.Len(8) = 4 would double the input to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 when size is
// not positive.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
