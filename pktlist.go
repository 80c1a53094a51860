package cobalt

import (
	"fmt"
)

// pktList is a FIFO of queued packets. It is not safe for concurrent use,
// Queue guards it together with the controller state.
type pktList[V any] struct {
	head *pktEntry[V]
	tail *pktEntry[V]
	size int
}

// pktEntry is a queued packet together with its enqueue timestamp.
type pktEntry[V any] struct {
	value       V
	enqueueNano uint64
	nxt         *pktEntry[V]
}

// String returns a string representation of the entry.
func (e *pktEntry[V]) String() string {
	return fmt.Sprintf("{Time: %d, value: %v}", e.enqueueNano, e.value)
}

func newPktList[V any]() *pktList[V] {
	return &pktList[V]{}
}

// Size returns the number of queued packets.
func (l *pktList[V]) Size() int {
	return l.size
}

// Push appends value at the tail.
func (l *pktList[V]) Push(value V, enqueueNano uint64) {
	e := &pktEntry[V]{
		value:       value,
		enqueueNano: enqueueNano,
	}
	if l.head == nil {
		l.head = e
		l.tail = e
	} else {
		l.tail.nxt = e
		l.tail = e
	}
	l.size++
}

// Oldest returns the head entry, or nil if the list is empty.
func (l *pktList[V]) Oldest() *pktEntry[V] {
	return l.head
}

// Pop removes and returns the head entry, or nil if the list is empty.
func (l *pktList[V]) Pop() *pktEntry[V] {
	e := l.head
	if e == nil {
		return nil
	}
	l.head = e.nxt
	if l.head == nil {
		l.tail = nil
	}
	e.nxt = nil
	l.size--
	return e
}
