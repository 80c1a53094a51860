// Package relay forwards UDP datagrams from a listening socket to one
// upstream address through a cobalt managed queue, drained at a configured
// egress rate. ECN capable datagrams are CE marked instead of dropped.
package relay

import (
	"cobalt"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"
)

const (
	maxDatagram        = 65535
	defaultReadTimeout = 200 * time.Millisecond
)

type Relay struct {
	conn        Conn
	upstream    netip.AddrPort
	queue       *cobalt.Queue[*datagram]
	rate        uint64 // bits/s, 0 = no pacing
	readTimeout time.Duration
	nowNano     func() uint64
	wake        chan struct{}
}

type RelayOption struct {
	nowNano     func() uint64
	readTimeout time.Duration
	rnd         cobalt.RandomSource
}

type RelayFunc func(*RelayOption)

// WithClock replaces the monotonic clock, nanoseconds.
func WithClock(nowNano func() uint64) RelayFunc {
	return func(c *RelayOption) {
		c.nowNano = nowNano
	}
}

func WithReadTimeout(readTimeout time.Duration) RelayFunc {
	return func(c *RelayOption) {
		c.readTimeout = readTimeout
	}
}

func WithRandomSource(rnd cobalt.RandomSource) RelayFunc {
	return func(c *RelayOption) {
		c.rnd = rnd
	}
}

func New(conn Conn, cfg *Config, options ...RelayFunc) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	upstream, err := cfg.UpstreamAddrPort()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	lOpts := &RelayOption{
		nowNano:     func() uint64 { return uint64(time.Since(start)) },
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range options {
		opt(lOpts)
	}

	queueOpts := []cobalt.QueueFunc{cobalt.WithRandomSource(lOpts.rnd)}
	if cfg.Limit > 0 {
		queueOpts = append(queueOpts, cobalt.WithLimit(cfg.Limit))
	}
	q := cobalt.NewQueue[*datagram](params, queueOpts...)
	q.OnDrop(func(d *datagram, reason cobalt.DropReason) {
		slog.Debug("datagram dropped",
			slog.String("reason", reason.String()),
			slog.Any("from", d.from),
			slog.Int("len", len(d.buf)))
	})

	return &Relay{
		conn:        conn,
		upstream:    upstream,
		queue:       q,
		rate:        cfg.Rate,
		readTimeout: lOpts.readTimeout,
		nowNano:     lOpts.nowNano,
		wake:        make(chan struct{}, 1),
	}, nil
}

// Collector returns a prometheus collector for the relay queue.
func (r *Relay) Collector() *Collector {
	return NewCollector(r.queue)
}

func (r *Relay) Stats() cobalt.Stats {
	return r.queue.Stats()
}

// Run reads and forwards datagrams until ctx is done or reading fails.
func (r *Relay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("relay started",
		slog.String("listen", r.conn.LocalAddrString()),
		slog.Any("upstream", r.upstream),
		slog.Uint64("rate", r.rate))

	var wg sync.WaitGroup
	var readErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		readErr = r.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		r.drainLoop(ctx)
	}()
	wg.Wait()

	slog.Info("relay stopped", slog.Any("stats", r.queue.Stats()))
	return readErr
}

func (r *Relay) readLoop(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for ctx.Err() == nil {
		n, tos, from, err := r.conn.ReadMsg(buf, r.readTimeout)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("read failed", slog.Any("error", err))
			return err
		}
		if n == 0 {
			continue
		}

		d := &datagram{
			buf:  append([]byte(nil), buf[:n]...),
			tos:  tos,
			from: from,
		}
		if !d.ecnCapable() {
			slog.Debug("datagram is not ECN capable", slog.Any("from", from))
		}
		if r.queue.Enqueue(d, r.nowNano()) {
			select {
			case r.wake <- struct{}{}:
			default:
			}
		}
	}
	return nil
}

func (r *Relay) drainLoop(ctx context.Context) {
	for {
		d, ok := r.queue.Dequeue(r.nowNano())
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
				continue
			}
		}

		if _, err := r.conn.WriteMsg(d.buf, d.tos, r.upstream); err != nil {
			slog.Error("write failed",
				slog.Any("error", err),
				slog.Any("upstream", r.upstream))
		}

		if pace := transferTime(r.rate, len(d.buf)); pace > 0 {
			timer := time.NewTimer(time.Duration(pace))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}
