package cobalt

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestNewParamsDefaults(t *testing.T) {
	p, err := NewParams()
	require.NoError(t, err)

	assert.Equal(t, DefaultInterval, p.Interval())
	assert.Equal(t, DefaultTarget, p.Target())
	assert.Equal(t, time.Duration(0), p.Threshold())
	assert.Equal(t, DefaultPInc, p.PInc())
	assert.Equal(t, DefaultPDec, p.PDec())
}

func TestNewParamsOptions(t *testing.T) {
	p, err := NewParams(
		WithInterval(200*time.Millisecond),
		WithTarget(10*time.Millisecond),
		WithThreshold(time.Millisecond),
		WithPInc(1<<20),
		WithPDec(1<<10),
	)
	require.NoError(t, err)

	assert.Equal(t, uint64(200_000_000), p.interval)
	assert.Equal(t, uint64(10_000_000), p.target)
	assert.Equal(t, time.Millisecond, p.Threshold())
	assert.Equal(t, uint32(1<<20), p.PInc())
	assert.Equal(t, uint32(1<<10), p.PDec())
}

func TestNewParamsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		options []ParamsFunc
		err     error
	}{
		{"zero interval", []ParamsFunc{WithInterval(0)}, ErrZeroInterval},
		{"negative interval", []ParamsFunc{WithInterval(-time.Second)}, ErrZeroInterval},
		{"zero target", []ParamsFunc{WithTarget(0)}, ErrZeroTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParams(tt.options...)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, p)
		})
	}
}

func TestParamsSharedAcrossVars(t *testing.T) {
	p := testParams(t)
	v1 := NewVars(&fixedSource{})
	v2 := NewVars(&fixedSource{})
	now := ms(100)

	v1.ShouldDrop(p, now, pktWithSojourn(now, ms(50), true))
	assert.True(t, v1.Dropping())
	assert.False(t, v2.Dropping())
	assert.Equal(t, 100*time.Millisecond, p.Interval())
}
