package relay

import (
	"net/netip"
	"time"
)

// Conn is a datagram socket that exposes the IP traffic class byte, which
// carries the ECN field.
type Conn interface {
	ReadMsg(p []byte, timeout time.Duration) (n int, tos byte, remoteAddr netip.AddrPort, err error)
	WriteMsg(p []byte, tos byte, remoteAddr netip.AddrPort) (n int, err error)
	Close() error
	LocalAddrString() string
}
