package cobalt

import (
	"log/slog"
	"sync"
)

type DropReason int

const (
	DropOverflow DropReason = iota // queue limit reached on enqueue
	DropAQM                        // ShouldDrop decided on dequeue
)

func (r DropReason) String() string {
	switch r {
	case DropOverflow:
		return "overflow"
	case DropAQM:
		return "aqm"
	default:
		return "unknown"
	}
}

// Stats counts what a Queue did with its packets.
type Stats struct {
	Enqueued  uint64
	Dequeued  uint64 // delivered, including marked packets
	Dropped   uint64 // dropped by the AQM on dequeue
	Marked    uint64 // delivered with a CE mark
	Overflows uint64 // tail drops on enqueue
}

// State is a snapshot of the controller state of a Queue.
type State struct {
	Count    uint32
	PDrop    uint32
	DropNext uint64
	Dropping bool
}

// Queue is a FIFO packet queue managed by one set of cobalt Vars. It stamps
// packets on enqueue and runs ShouldDrop on dequeue. P should be a pointer
// type so that a CE mark set through Marker is visible to the caller.
type Queue[P Marker] struct {
	params *Params
	vars   *Vars
	pkts   *pktList[P]
	limit  int
	onDrop func(pkt P, reason DropReason)
	stats  Stats
	last   uint64 // latest time handed to vars
	mu     sync.Mutex
}

type QueueOption struct {
	limit int
	rnd   RandomSource
}

type QueueFunc func(*QueueOption)

// WithLimit sets the maximum number of queued packets.
func WithLimit(limit int) QueueFunc {
	return func(c *QueueOption) {
		c.limit = limit
	}
}

func WithRandomSource(rnd RandomSource) QueueFunc {
	return func(c *QueueOption) {
		c.rnd = rnd
	}
}

func NewQueue[P Marker](params *Params, options ...QueueFunc) *Queue[P] {
	lOpts := &QueueOption{
		limit: DefaultLimit,
	}
	for _, opt := range options {
		opt(lOpts)
	}
	if lOpts.limit <= 0 {
		slog.Warn("queue limit must be positive, using default", slog.Int("limit", lOpts.limit))
		lOpts.limit = DefaultLimit
	}

	return &Queue[P]{
		params: params,
		vars:   NewVars(lOpts.rnd),
		pkts:   newPktList[P](),
		limit:  lOpts.limit,
	}
}

// OnDrop registers a callback for every dropped packet. It runs with the
// queue lock held and must not call back into the queue.
func (q *Queue[P]) OnDrop(fn func(pkt P, reason DropReason)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// Enqueue appends pkt, stamped with nowNano. It returns false if the queue
// was full and pkt got dropped. A nowNano older than any time seen before
// is replaced by that time, the same holds for Dequeue.
func (q *Queue[P]) Enqueue(pkt P, nowNano uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	nowNano = q.clamp(nowNano)

	if q.pkts.Size() >= q.limit {
		q.stats.Overflows++
		q.vars.QueueFull(q.params, nowNano)
		slog.Debug("queue full, tail drop",
			slog.Int("limit", q.limit),
			slog.Uint64("p_drop", uint64(q.vars.PDrop())))
		q.drop(pkt, DropOverflow)
		return false
	}

	q.pkts.Push(pkt, nowNano)
	q.stats.Enqueued++
	return true
}

// Dequeue returns the next packet that survives the AQM. Packets the AQM
// drops on the way are discarded. ok is false if the queue ran empty.
func (q *Queue[P]) Dequeue(nowNano uint64) (pkt P, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	nowNano = q.clamp(nowNano)

	for {
		e := q.pkts.Pop()
		if e == nil {
			q.vars.QueueEmpty(q.params, nowNano)
			return pkt, false
		}

		if q.vars.ShouldDrop(q.params, nowNano, queuedPacket[P]{e}) {
			q.stats.Dropped++
			slog.Debug("aqm drop",
				slog.Uint64("sojourn", nowNano-e.enqueueNano),
				slog.Uint64("count", uint64(q.vars.Count())))
			q.drop(e.value, DropAQM)
			continue
		}

		if q.vars.ECNMarked() {
			q.stats.Marked++
		}
		q.stats.Dequeued++
		return e.value, true
	}
}

// clamp keeps time monotonic for vars. Callers read their clock before
// taking the lock, so a concurrent Enqueue and Dequeue can arrive in reverse
// order.
func (q *Queue[P]) clamp(nowNano uint64) uint64 {
	if nowNano < q.last {
		return q.last
	}
	q.last = nowNano
	return nowNano
}

func (q *Queue[P]) drop(pkt P, reason DropReason) {
	if q.onDrop != nil {
		q.onDrop(pkt, reason)
	}
}

func (q *Queue[P]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pkts.Size()
}

func (q *Queue[P]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *Queue[P]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return State{
		Count:    q.vars.Count(),
		PDrop:    q.vars.PDrop(),
		DropNext: q.vars.DropNext(),
		Dropping: q.vars.Dropping(),
	}
}

func (q *Queue[P]) Params() *Params {
	return q.params
}

// queuedPacket hands a list entry to the engine, the timestamp comes from
// the queue and the mark is forwarded to the packet.
type queuedPacket[P Marker] struct {
	*pktEntry[P]
}

func (p queuedPacket[P]) EnqueueTime() uint64 {
	return p.enqueueNano
}

func (p queuedPacket[P]) SetCE() bool {
	return p.value.SetCE()
}
