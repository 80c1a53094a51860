package cobalt

import (
	"errors"
	"log/slog"
	"time"
)

var (
	ErrZeroInterval = errors.New("cobalt: interval must be greater than zero")
	ErrZeroTarget   = errors.New("cobalt: target must be greater than zero")
)

// Params holds the tunables of one AQM policy. It is read-only after
// NewParams returns and can be shared by any number of Vars.
type Params struct {
	interval  uint64 // base time constant of the control law (ns)
	target    uint64 // max persistent sojourn time, also BLUE update spacing (ns)
	threshold uint64 // carried for tuning, not used by the decision logic (ns)
	pInc      uint32
	pDec      uint32
}

type ParamsOption struct {
	interval  time.Duration
	target    time.Duration
	threshold time.Duration
	pInc      uint32
	pDec      uint32
}

type ParamsFunc func(*ParamsOption)

func WithInterval(interval time.Duration) ParamsFunc {
	return func(c *ParamsOption) {
		c.interval = interval
	}
}

func WithTarget(target time.Duration) ParamsFunc {
	return func(c *ParamsOption) {
		c.target = target
	}
}

func WithThreshold(threshold time.Duration) ParamsFunc {
	return func(c *ParamsOption) {
		c.threshold = threshold
	}
}

// WithPInc sets the BLUE increment, as a fraction of the full 32 bit range.
func WithPInc(pInc uint32) ParamsFunc {
	return func(c *ParamsOption) {
		c.pInc = pInc
	}
}

// WithPDec sets the BLUE decrement, as a fraction of the full 32 bit range.
func WithPDec(pDec uint32) ParamsFunc {
	return func(c *ParamsOption) {
		c.pDec = pDec
	}
}

func NewParams(options ...ParamsFunc) (*Params, error) {
	lOpts := &ParamsOption{
		interval: DefaultInterval,
		target:   DefaultTarget,
		pInc:     DefaultPInc,
		pDec:     DefaultPDec,
	}
	for _, opt := range options {
		opt(lOpts)
	}

	if lOpts.interval <= 0 {
		slog.Error("invalid cobalt params", slog.Duration("interval", lOpts.interval))
		return nil, ErrZeroInterval
	}
	if lOpts.target <= 0 {
		slog.Error("invalid cobalt params", slog.Duration("target", lOpts.target))
		return nil, ErrZeroTarget
	}
	if lOpts.pInc == 0 {
		slog.Warn("p_inc is zero, BLUE will never raise the drop probability")
	}

	return &Params{
		interval:  durNanos(lOpts.interval),
		target:    durNanos(lOpts.target),
		threshold: durNanos(lOpts.threshold),
		pInc:      lOpts.pInc,
		pDec:      lOpts.pDec,
	}, nil
}

func (p *Params) Interval() time.Duration {
	return time.Duration(p.interval)
}

func (p *Params) Target() time.Duration {
	return time.Duration(p.target)
}

func (p *Params) Threshold() time.Duration {
	return time.Duration(p.threshold)
}

func (p *Params) PInc() uint32 {
	return p.pInc
}

func (p *Params) PDec() uint32 {
	return p.pDec
}
