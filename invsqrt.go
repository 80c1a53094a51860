package cobalt

import (
	"sync"
)

const (
	recInvSqrtBits  = 32
	recInvSqrtShift = 32 - recInvSqrtBits
	recInvSqrtCache = 16
)

var (
	recInvSqrtOnce  sync.Once
	recInvSqrtTable [recInvSqrtCache]uint32
)

// initRecInvSqrtTable builds the lookup table once per process. The entry for
// count 0 is the all-ones seed, each following entry is the result of four
// Newton steps starting from the previous one.
func initRecInvSqrtTable() {
	recInvSqrtOnce.Do(func() {
		rec := ^uint32(0) >> recInvSqrtShift
		recInvSqrtTable[0] = rec
		for count := uint32(1); count < recInvSqrtCache; count++ {
			for i := 0; i < 4; i++ {
				rec = newtonStep(count, rec)
			}
			recInvSqrtTable[count] = rec
		}
	})
}

// cachedRecInvSqrt returns the table entry for count, or 0 if count has no
// entry or the table is not built yet.
func cachedRecInvSqrt(count uint32) uint32 {
	if count < recInvSqrtCache {
		return recInvSqrtTable[count]
	}
	return 0
}

// refineRecInvSqrt returns a better estimate of 1/sqrt(count), using the
// table for small counts.
func refineRecInvSqrt(count uint32, rec uint32) uint32 {
	if v := cachedRecInvSqrt(count); v != 0 {
		return v
	}
	return newtonStep(count, rec)
}

// newtonStep runs one iteration of
//
//	new = (rec / 2) * (3 - count * rec^2)
//
// with rec a Q0.32 fixed point fraction.
func newtonStep(count uint32, rec uint32) uint32 {
	invsqrt := uint64(rec) << recInvSqrtShift
	invsqrt2 := (invsqrt * invsqrt) >> 32
	val := (uint64(3) << 32) - uint64(count)*invsqrt2

	val >>= 2 // keeps the next multiply inside 64 bits
	val = (val * invsqrt) >> (32 - 2 + 1)

	return uint32(val >> recInvSqrtShift)
}
