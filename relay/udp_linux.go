package relay

import (
	"encoding/binary"
	"errors"
	"golang.org/x/sys/unix"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"
)

const oobSize = 64

type UDPConn struct {
	conn    *net.UDPConn
	oob     []byte
	lastTOS int
	muRead  sync.Mutex
	muWrite sync.Mutex
}

// NewUDPConn wraps conn and asks the kernel to report the TOS / traffic
// class of received datagrams.
func NewUDPConn(conn *net.UDPConn) (*UDPConn, error) {
	if err := setRecvTOS(conn); err != nil {
		return nil, err
	}
	return &UDPConn{
		conn:    conn,
		oob:     make([]byte, oobSize),
		lastTOS: -1,
	}, nil
}

// based on setDF, at least one address family has to succeed
func setRecvTOS(conn *net.UDPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var errV4, errV6 error
	if err := rawConn.Control(func(fd uintptr) {
		errV4 = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_RECVTOS, 1)
		errV6 = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_RECVTCLASS, 1)
	}); err != nil {
		return err
	}

	switch {
	case errV4 == nil && errV6 == nil:
		slog.Info("receiving TOS for IPv4 and IPv6")
	case errV4 == nil && errV6 != nil:
		slog.Info("receiving TOS for IPv4 only")
	case errV4 != nil && errV6 == nil:
		slog.Info("receiving TOS for IPv6 only")
	case errV4 != nil && errV6 != nil:
		slog.Error("receiving TOS failed for both IPv4 and IPv6",
			slog.Any("errorV4", errV4),
			slog.Any("errorV6", errV6))
		return errors.Join(errV4, errV6)
	}
	return nil
}

func (c *UDPConn) ReadMsg(p []byte, timeout time.Duration) (int, byte, netip.AddrPort, error) {
	c.muRead.Lock()
	defer c.muRead.Unlock()

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, 0, netip.AddrPort{}, err
	}

	n, oobn, _, a, err := c.conn.ReadMsgUDPAddrPort(p, c.oob)
	if err != nil {
		return n, 0, a, err
	}
	return n, parseTOS(c.oob[:oobn]), a, nil
}

// parseTOS extracts the TOS (IPv4) or traffic class (IPv6) from control
// messages, 0 if none is present.
func parseTOS(oob []byte) byte {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		slog.Debug("cannot parse control message", slog.Any("error", err))
		return 0
	}
	for _, m := range msgs {
		switch {
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_TOS && len(m.Data) >= 1:
			return m.Data[0]
		case m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_TCLASS && len(m.Data) >= 4:
			return byte(binary.NativeEndian.Uint32(m.Data))
		}
	}
	return 0
}

// WriteMsg sends p with the given TOS. The socket option is only touched
// when the TOS changes between sends.
func (c *UDPConn) WriteMsg(p []byte, tos byte, remoteAddr netip.AddrPort) (int, error) {
	c.muWrite.Lock()
	defer c.muWrite.Unlock()

	if int(tos) != c.lastTOS {
		if err := c.setTOS(tos, remoteAddr.Addr().Is4() || remoteAddr.Addr().Is4In6()); err != nil {
			return 0, err
		}
		c.lastTOS = int(tos)
	}
	return c.conn.WriteToUDPAddrPort(p, remoteAddr)
}

func (c *UDPConn) setTOS(tos byte, v4 bool) error {
	rawConn, err := c.conn.SyscallConn()
	if err != nil {
		return err
	}

	var errSet error
	if err := rawConn.Control(func(fd uintptr) {
		if v4 {
			errSet = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, int(tos))
		} else {
			errSet = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, int(tos))
		}
	}); err != nil {
		return err
	}
	return errSet
}

func (c *UDPConn) Close() error {
	return c.conn.Close()
}

func (c *UDPConn) LocalAddrString() string {
	return c.conn.LocalAddr().String()
}
