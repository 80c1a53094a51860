package relay

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memPacket represents a datagram on a memConn
type memPacket struct {
	data       []byte
	tos        byte
	remoteAddr netip.AddrPort
}

// memConn implements Conn in memory. Datagrams pushed into in are read by
// the relay, everything the relay writes ends up in out.
type memConn struct {
	in      chan memPacket
	readErr error

	mu  sync.Mutex
	out []memPacket

	closeOnce sync.Once
	closed    chan struct{}
}

func newMemConn() *memConn {
	return &memConn{
		in:     make(chan memPacket, 16),
		closed: make(chan struct{}),
	}
}

func (c *memConn) ReadMsg(p []byte, timeout time.Duration) (int, byte, netip.AddrPort, error) {
	if c.readErr != nil {
		return 0, 0, netip.AddrPort{}, c.readErr
	}
	select {
	case pkt := <-c.in:
		n := copy(p, pkt.data)
		return n, pkt.tos, pkt.remoteAddr, nil
	case <-time.After(timeout):
		return 0, 0, netip.AddrPort{}, os.ErrDeadlineExceeded
	case <-c.closed:
		return 0, 0, netip.AddrPort{}, net.ErrClosed
	}
}

func (c *memConn) WriteMsg(p []byte, tos byte, remoteAddr netip.AddrPort) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, memPacket{
		data:       append([]byte(nil), p...),
		tos:        tos,
		remoteAddr: remoteAddr,
	})
	return len(p), nil
}

func (c *memConn) written() []memPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]memPacket(nil), c.out...)
}

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *memConn) LocalAddrString() string {
	return "mem:0"
}

var testFrom = netip.MustParseAddrPort("10.0.0.1:5000")

func testConfig(limit int) *Config {
	return &Config{
		Listen:   ":9000",
		Upstream: "10.0.0.2:9000",
		Limit:    limit,
	}
}

// runRelay starts r in the background and returns a stop function that
// cancels it and returns the error of Run.
func runRelay(t *testing.T, r *Relay) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(ctx)
	}()
	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("relay did not stop")
			return nil
		}
	}
}

func TestRelayForwards(t *testing.T) {
	conn := newMemConn()
	r, err := New(conn, testConfig(10), WithReadTimeout(10*time.Millisecond))
	require.NoError(t, err)
	stop := runRelay(t, r)

	for i := byte(0); i < 3; i++ {
		conn.in <- memPacket{data: []byte{i}, tos: ecnECT0, remoteAddr: testFrom}
	}

	require.Eventually(t, func() bool {
		return len(conn.written()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, stop())

	upstream := netip.MustParseAddrPort("10.0.0.2:9000")
	for i, p := range conn.written() {
		assert.Equal(t, []byte{byte(i)}, p.data)
		assert.Equal(t, byte(ecnECT0), p.tos)
		assert.Equal(t, upstream, p.remoteAddr)
	}
	assert.Equal(t, uint64(3), r.Stats().Dequeued)
}

// fillOverflowed enqueues limit+1 datagrams at time 0, which forces the
// delay controller into dropping with the next action due immediately.
func fillOverflowed(r *Relay, limit int, tos byte) {
	for i := 0; i <= limit; i++ {
		r.queue.Enqueue(&datagram{buf: []byte{byte(i)}, tos: tos, from: testFrom}, 0)
	}
}

func TestRelayMarksECNCapable(t *testing.T) {
	var now atomic.Uint64
	conn := newMemConn()
	r, err := New(conn, testConfig(2),
		WithReadTimeout(10*time.Millisecond),
		WithClock(now.Load))
	require.NoError(t, err)

	fillOverflowed(r, 2, ecnECT0)
	now.Store(uint64(300 * time.Millisecond))
	stop := runRelay(t, r)

	require.Eventually(t, func() bool {
		return len(conn.written()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, stop())

	for _, p := range conn.written() {
		assert.Equal(t, byte(ecnCE), p.tos)
	}
	st := r.Stats()
	assert.Equal(t, uint64(1), st.Overflows)
	assert.Equal(t, uint64(2), st.Marked)
	assert.Equal(t, uint64(0), st.Dropped)
}

func TestRelayDropsNotECT(t *testing.T) {
	var now atomic.Uint64
	conn := newMemConn()
	r, err := New(conn, testConfig(2),
		WithReadTimeout(10*time.Millisecond),
		WithClock(now.Load))
	require.NoError(t, err)

	fillOverflowed(r, 2, ecnNotECT)
	now.Store(uint64(300 * time.Millisecond))
	stop := runRelay(t, r)

	require.Eventually(t, func() bool {
		return r.Stats().Dropped == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, stop())

	assert.Empty(t, conn.written())
	assert.Equal(t, uint64(0), r.Stats().Marked)
}

func TestRelayReadError(t *testing.T) {
	conn := newMemConn()
	conn.readErr = errors.New("socket broken")
	r, err := New(conn, testConfig(10))
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.EqualError(t, err, "socket broken")
}

func TestRelayStopsOnClose(t *testing.T) {
	conn := newMemConn()
	r, err := New(conn, testConfig(10), WithReadTimeout(time.Second))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background())
	}()
	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after close")
	}
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(newMemConn(), &Config{Upstream: "10.0.0.2:9000"})
	assert.ErrorIs(t, err, ErrNoListen)
}
