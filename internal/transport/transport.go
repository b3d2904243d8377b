// Package transport implements teeworlds' connectionless UDP framing: a
// fixed 6-byte header wraps every datagram, and both IPv4 and IPv6
// sockets are polled as one logical endpoint. Grounded on
// original_source/update/packet.c.
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// connlessHeader is teeworlds' connectionless packet header, prepended
// to every outbound payload and stripped from every inbound one.
var connlessHeader = [6]byte{'x', 'e', 0xff, 0xff, 0xff, 0xff}

// MaxPacketSize is the largest payload (header excluded) this transport
// will send or accept.
const MaxPacketSize = 1400 - len(connlessHeader)

// ReceiveTimeout bounds how long Receive blocks without a packet.
const ReceiveTimeout = time.Second

// Packet is one inbound datagram with its framing already removed.
type Packet struct {
	Data []byte
	Addr net.Addr
}

// Sockets pairs the IPv4 and IPv6 UDP sockets teeworlds requires,
// polled jointly by Receive.
type Sockets struct {
	v4 *net.UDPConn
	v6 *net.UDPConn
}

// Open binds both address families on an ephemeral local port.
func Open() (*Sockets, error) {
	v4, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("opening ipv4 socket: %w", err)
	}

	v6, err := net.ListenUDP("udp6", &net.UDPAddr{})
	if err != nil {
		v4.Close()
		return nil, fmt.Errorf("opening ipv6 socket: %w", err)
	}

	return &Sockets{v4: v4, v6: v6}, nil
}

// V4LocalAddr returns the address the IPv4 socket is bound to, for
// callers (and tests) that need to address this process directly.
func (s *Sockets) V4LocalAddr() net.Addr {
	return s.v4.LocalAddr()
}

// Close closes both sockets.
func (s *Sockets) Close() error {
	err4 := s.v4.Close()
	err6 := s.v6.Close()
	if err4 != nil {
		return err4
	}
	return err6
}

// Send frames payload with the connectionless header and writes it to
// addr, picking the socket matching addr's address family.
func (s *Sockets) Send(payload []byte, addr net.Addr) error {
	if len(payload) > MaxPacketSize {
		return fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPacketSize)
	}

	buf := make([]byte, 0, len(connlessHeader)+len(payload))
	buf = append(buf, connlessHeader[:]...)
	buf = append(buf, payload...)

	conn := s.connFor(addr)
	n, err := conn.WriteTo(buf, addr)
	if err != nil {
		return fmt.Errorf("sending to %s: %w", addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("short write to %s: %d of %d bytes", addr, n, len(buf))
	}
	return nil
}

func (s *Sockets) connFor(addr net.Addr) *net.UDPConn {
	if udpAddr, ok := addr.(*net.UDPAddr); ok && udpAddr.IP.To4() != nil {
		return s.v4
	}
	return s.v6
}

// Receive blocks at most ReceiveTimeout waiting for one inbound
// datagram on either socket. It returns ok=false, with a nil error, on
// timeout or on any malformed, too-short or oversized datagram (dropped
// silently, per spec.md §4.1: a truncated header is not an error worth
// surfacing).
//
// The IPv4 socket is read first, for up to half of ReceiveTimeout; the
// IPv6 socket is read, for the other half, only when no IPv4 datagram
// arrived in that time. While IPv4 datagrams keep arriving, the IPv6
// socket is not read.
func (s *Sockets) Receive() (Packet, bool, error) {
	half := ReceiveTimeout / 2

	if pkt, ok, err := s.receiveFrom(s.v4, half); err != nil || ok {
		return pkt, ok, err
	}
	return s.receiveFrom(s.v6, half)
}

func (s *Sockets) receiveFrom(conn *net.UDPConn, timeout time.Duration) (Packet, bool, error) {
	buf := make([]byte, 1400+256)

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Packet{}, false, fmt.Errorf("setting read deadline: %w", err)
	}

	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Packet{}, false, nil
		}
		return Packet{}, false, fmt.Errorf("receiving packet: %w", err)
	}

	if n < len(connlessHeader) {
		return Packet{}, false, nil
	}
	if [6]byte(buf[:6]) != connlessHeader {
		return Packet{}, false, nil
	}
	if n-len(connlessHeader) > MaxPacketSize {
		return Packet{}, false, nil
	}

	data := make([]byte, n-len(connlessHeader))
	copy(data, buf[len(connlessHeader):n])

	return Packet{Data: data, Addr: addr}, true, nil
}
