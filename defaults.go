package cobalt

import (
	"time"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultTarget   = 5 * time.Millisecond
	DefaultPInc     = uint32(1 << 24)
	DefaultPDec     = uint32(1 << 20)
	DefaultLimit    = 1000 // packets
)
