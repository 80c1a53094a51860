package relay

import (
	"net/netip"
)

// ECN codepoints in the two low bits of the IPv4 TOS / IPv6 traffic class.
const (
	ecnMask   = 0x03
	ecnNotECT = 0x00
	ecnECT1   = 0x01
	ecnECT0   = 0x02
	ecnCE     = 0x03
)

// datagram is one queued UDP payload together with its traffic class byte.
type datagram struct {
	buf  []byte
	tos  byte
	from netip.AddrPort
}

// SetCE sets the CE codepoint on ECN capable datagrams. Not-ECT traffic
// cannot be marked and has to be dropped instead.
func (d *datagram) SetCE() bool {
	if d.tos&ecnMask == ecnNotECT {
		return false
	}
	d.tos |= ecnCE
	return true
}

func (d *datagram) ecnCapable() bool {
	return d.tos&ecnMask != ecnNotECT
}

// transferTime is the serialization delay of n bytes at rate bits/s.
func transferTime(rate uint64, n int) uint64 {
	if rate == 0 {
		return 0
	}
	return uint64(n) * 8 * 1_000_000_000 / rate
}
