package cobalt

import (
	"math"
	"math/bits"
	"time"
)

// controlLaw returns t + interval/sqrt(count), using the cached reciprocal
// instead of a square root and a division.
func controlLaw(t uint64, interval uint64, rec uint32) uint64 {
	hi, lo := bits.Mul64(interval, uint64(rec)<<recInvSqrtShift)
	return t + (hi<<32 | lo>>32)
}

func satAddUint32(a uint32, b uint32) uint32 {
	sum, carry := bits.Add32(a, b, 0)
	if carry != 0 {
		return math.MaxUint32
	}
	return sum
}

func satSubUint32(a uint32, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}

func satIncUint32(a uint32) uint32 {
	return satAddUint32(a, 1)
}

// durNanos converts a duration to engine time, negative durations become 0.
func durNanos(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d)
}
