// Package udp is a reference transport.Sender/Receiver pair over a UDP
// socket, with send/receive buffer tuning via golang.org/x/sys/unix
// (grounded on the teacher's ios/fsutils_linux.go use of the same package
// for OS-level socket/fs tuning).
package udp

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/orbitalnet/zonerep/cmn/nlog"
	"github.com/orbitalnet/zonerep/transport"
)

const (
	defaultRcvBuf = 1 << 20
	defaultSndBuf = 1 << 20
	maxDatagram   = 2048
)

// Conn is a connected UDP socket implementing both transport.Sender and
// transport.Receiver for one peer.
type Conn struct {
	pc   *net.UDPConn
	peer *net.UDPAddr
}

// Dial opens a UDP socket to addr and tunes its kernel send/receive
// buffers.
func Dial(addr string) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	pc, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	tuneBuffers(pc)
	return &Conn{pc: pc, peer: raddr}, nil
}

// Listen opens a UDP socket bound to addr; Recv accepts from any peer and
// Send requires a peer, learned from a prior Recv or set via SetPeer.
func Listen(addr string) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	pc, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	tuneBuffers(pc)
	return &Conn{pc: pc}, nil
}

// SetPeer fixes the destination used by Send on a Conn opened with Listen.
func (c *Conn) SetPeer(addr *net.UDPAddr) { c.peer = addr }

func tuneBuffers(pc *net.UDPConn) {
	raw, err := pc.SyscallConn()
	if err != nil {
		nlog.Warningf("udp: cannot access raw conn for buffer tuning: %v", err)
		return
	}
	ctlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, defaultRcvBuf); err != nil {
			nlog.Warningf("udp: SO_RCVBUF: %v", err)
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, defaultSndBuf); err != nil {
			nlog.Warningf("udp: SO_SNDBUF: %v", err)
		}
	})
	if ctlErr != nil {
		nlog.Warningf("udp: raw conn control failed: %v", ctlErr)
	}
}

// Send implements transport.Sender. It never blocks: a full kernel send
// buffer surfaces as a dropped write, which the ACK protocol recovers from
// via resend (spec.md §5).
func (c *Conn) Send(m *transport.Message) error {
	buf, err := transport.EncodeEnvelope(m)
	if err != nil {
		return err
	}
	if c.peer != nil && c.pc.RemoteAddr() == nil {
		_, err = c.pc.WriteToUDP(buf, c.peer)
	} else {
		_, err = c.pc.Write(buf)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
	}
	return err
}

// Recv implements transport.Receiver, blocking until a datagram arrives.
func (c *Conn) Recv() (*transport.Message, error) {
	buf := make([]byte, maxDatagram)
	n, from, err := c.pc.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	c.peer = from
	return transport.DecodeEnvelope(buf[:n])
}

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.pc.Close() }
