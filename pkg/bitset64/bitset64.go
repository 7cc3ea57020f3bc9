// Package bitset64 provides fixed-width 64-bit bit window helpers used for
// the blob-stream ack-mask wire field (§4.6, §6): a snapshot of "received"
// bits for the 64 chunk indices immediately after a reported index.
package bitset64

import "math/bits"

// Set returns mask with bit i set.
func Set(mask uint64, i uint) uint64 {
	return mask | (uint64(1) << i)
}

// IsSet reports whether bit i is set in mask.
func IsSet(mask uint64, i uint) bool {
	return mask&(uint64(1)<<i) != 0
}

// CountSetBits returns the number of set bits in mask.
func CountSetBits(mask uint64) int {
	return bits.OnesCount64(mask)
}

// AllSet reports whether the low n bits of mask are all set. n must be in
// [0, 64].
func AllSet(mask uint64, n uint) bool {
	if n == 0 {
		return true
	}
	var want uint64
	if n == 64 {
		want = ^uint64(0)
	} else {
		want = (uint64(1) << n) - 1
	}
	return mask&want == want
}

// FirstUnsetBit returns the index of the lowest unset bit in the low n bits
// of mask, or -1 if all n bits are set.
func FirstUnsetBit(mask uint64, n uint) int {
	for i := uint(0); i < n; i++ {
		if !IsSet(mask, i) {
			return int(i)
		}
	}
	return -1
}

// AtomFromIndex builds the 64-bit window mask covering the 64 absolute
// indices starting at bitIndex, given a membership predicate. Bit i of the
// returned mask corresponds to absolute index bitIndex+i. Callers wanting
// "the 64 bits following index" pass bitIndex+1.
func AtomFromIndex(bitIndex uint32, isMember func(index uint32) bool) uint64 {
	var mask uint64
	for i := uint(0); i < 64; i++ {
		if isMember(bitIndex + uint32(i)) {
			mask = Set(mask, i)
		}
	}
	return mask
}
