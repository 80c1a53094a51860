// Package cobalt decides whether a dequeued packet is dropped, ECN marked or
// passed, running a CoDel style delay controller and a BLUE style
// probability controller side by side. Codel handles flows that back off on
// congestion signals, BLUE catches the unresponsive ones.
//
// The engine does no I/O, never reads the clock and takes no locks. Every
// call on one Vars must be serialized by the host, usually under the lock
// that already guards its enqueue and dequeue path. Params can be shared.
package cobalt

// Timestamper returns the time (ns) at which the packet entered the queue.
type Timestamper interface {
	EnqueueTime() uint64
}

// Marker tries to set the congestion experienced mark on a packet and
// reports whether it was applied. False means the packet cannot carry it.
type Marker interface {
	SetCE() bool
}

// Packet is what ShouldDrop needs from a dequeued packet.
type Packet interface {
	Timestamper
	Marker
}

// Vars is the per queue controller state. It must be set up with NewVars or
// Init before use.
type Vars struct {
	count      uint32 // consecutive delay actions, drives recInvSqrt
	recInvSqrt uint32 // Q0.32 approximation of 1/sqrt(count)
	dropNext   uint64 // next due action, only meaningful while dropping
	blueTimer  uint64 // last BLUE update
	pDrop      uint32 // BLUE drop probability, fraction of 2^32
	dropping   bool
	ecnMarked  bool // last action was a mark instead of a drop
	rnd        RandomSource
}

// NewVars returns zeroed state for a new queue. A nil rnd selects
// DefaultSource.
func NewVars(rnd RandomSource) *Vars {
	v := &Vars{}
	v.Init(rnd)
	return v
}

// Init resets v to its zero state and makes sure the shared reciprocal
// square root table exists.
func (v *Vars) Init(rnd RandomSource) {
	initRecInvSqrtTable()
	if rnd == nil {
		rnd = DefaultSource
	}
	*v = Vars{rnd: rnd}
}

// ShouldDrop is called with a freshly dequeued packet. It returns true if
// the packet has to be dropped, false if it is delivered, possibly with a
// CE mark (see ECNMarked).
func (v *Vars) ShouldDrop(p *Params, nowNano uint64, pkt Packet) bool {
	drop := v.delayControl(p, nowNano, pkt)

	// BLUE never marks, its targets are flows that ignore marks anyway
	if v.pDrop != 0 {
		if v.rnd == nil {
			v.rnd = DefaultSource
		}
		if v.rnd.Uint32() < v.pDrop {
			drop = true
		}
	}

	return drop
}

// Count is the number of consecutive delay actions.
func (v *Vars) Count() uint32 {
	return v.count
}

// RecInvSqrt is the cached 1/sqrt(Count) in Q0.32.
func (v *Vars) RecInvSqrt() uint32 {
	return v.recInvSqrt
}

// DropNext is the time (ns) of the next scheduled delay action.
func (v *Vars) DropNext() uint64 {
	return v.dropNext
}

// PDrop is the BLUE drop probability as a fraction of 2^32.
func (v *Vars) PDrop() uint32 {
	return v.pDrop
}

// Dropping reports whether the delay controller is in its dropping state.
func (v *Vars) Dropping() bool {
	return v.dropping
}

// ECNMarked reports whether the last ShouldDrop marked instead of dropping.
func (v *Vars) ECNMarked() bool {
	return v.ecnMarked
}
