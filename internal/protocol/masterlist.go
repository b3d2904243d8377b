package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const addrRecordSize = 18 // 16 bytes IPv4-mapped-IPv6 + 2 bytes big-endian port

// ipv4Prefix is the 12-byte prefix marking an address record as an
// IPv4-mapped IPv6 address.
var ipv4Prefix = [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

// ServerAddr is one (ip, port) pair decoded from a master's address
// list.
type ServerAddr struct {
	IP   string
	Port string
}

// DecodeMasterList decodes every fixed-size address record in a master
// reply. Mirrors unpack_server_addr, but iterates to completion in one
// call rather than maintaining unpacker state across invocations, since
// a single lis2 packet carries its whole record list.
func DecodeMasterList(data []byte) ([]ServerAddr, error) {
	payload, ok := stripListMagic(data)
	if !ok {
		return nil, ErrMalformedPacket
	}

	var addrs []ServerAddr
	for len(payload) >= addrRecordSize {
		rec := payload[:addrRecordSize]
		payload = payload[addrRecordSize:]

		addrs = append(addrs, ServerAddr{
			IP:   formatAddr(rec[:16]),
			Port: formatPort(rec[16:18]),
		})
	}

	return addrs, nil
}

func formatAddr(ip []byte) string {
	if bytes.Equal(ip[:12], ipv4Prefix[:]) {
		return fmt.Sprintf("%d.%d.%d.%d", ip[12], ip[13], ip[14], ip[15])
	}

	// Fixed zero-padded 4-hex-digit groups, no "::" compression: these
	// strings are used as database keys and must round-trip bitwise.
	return fmt.Sprintf("%04x:%04x:%04x:%04x:%04x:%04x:%04x:%04x",
		binary.BigEndian.Uint16(ip[0:2]), binary.BigEndian.Uint16(ip[2:4]),
		binary.BigEndian.Uint16(ip[4:6]), binary.BigEndian.Uint16(ip[6:8]),
		binary.BigEndian.Uint16(ip[8:10]), binary.BigEndian.Uint16(ip[10:12]),
		binary.BigEndian.Uint16(ip[12:14]), binary.BigEndian.Uint16(ip[14:16]))
}

func formatPort(port []byte) string {
	return fmt.Sprintf("%d", binary.BigEndian.Uint16(port))
}
