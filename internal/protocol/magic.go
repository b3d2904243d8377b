package protocol

import "bytes"

// Every teeworlds server-info/list message is prefixed with four 0xff
// bytes (a holdover from the very first protocol version, kept for
// backwards compatibility) followed by a 4-byte ASCII dialect code.
var magicPrefix = [4]byte{0xff, 0xff, 0xff, 0xff}

type dialect int

const (
	dialectVanilla dialect = iota
	dialectLegacy64
	dialectExtended
	dialectExtendedMore
)

var (
	magicVanilla      = append(append([]byte{}, magicPrefix[:]...), "inf3"...)
	magicLegacy64     = append(append([]byte{}, magicPrefix[:]...), "dtsf"...)
	magicExtended     = append(append([]byte{}, magicPrefix[:]...), "iext"...)
	magicExtendedMore = append(append([]byte{}, magicPrefix[:]...), "iex+"...)
	magicList         = append(append([]byte{}, magicPrefix[:]...), "lis2"...)
)

// detectDialect matches the packet's leading magic and returns the
// payload with it stripped. Mirrors unpacker.c's packet_type.
func detectDialect(data []byte) (dialect, []byte, bool) {
	switch {
	case bytes.HasPrefix(data, magicVanilla):
		return dialectVanilla, data[len(magicVanilla):], true
	case bytes.HasPrefix(data, magicLegacy64):
		return dialectLegacy64, data[len(magicLegacy64):], true
	case bytes.HasPrefix(data, magicExtended):
		return dialectExtended, data[len(magicExtended):], true
	case bytes.HasPrefix(data, magicExtendedMore):
		return dialectExtendedMore, data[len(magicExtendedMore):], true
	default:
		return 0, nil, false
	}
}

// stripListMagic validates and strips the lis2 magic from a master
// reply, returning the raw address-record payload.
func stripListMagic(data []byte) ([]byte, bool) {
	if !bytes.HasPrefix(data, magicList) {
		return nil, false
	}
	return data[len(magicList):], true
}
