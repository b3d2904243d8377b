package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipv4Record(a, b, c, d byte, port uint16) []byte {
	rec := make([]byte, addrRecordSize)
	copy(rec, ipv4Prefix[:])
	rec[12], rec[13], rec[14], rec[15] = a, b, c, d
	rec[16] = byte(port >> 8)
	rec[17] = byte(port)
	return rec
}

func ipv6Record(groups [8]uint16, port uint16) []byte {
	rec := make([]byte, addrRecordSize)
	for i, g := range groups {
		rec[i*2] = byte(g >> 8)
		rec[i*2+1] = byte(g)
	}
	rec[16] = byte(port >> 8)
	rec[17] = byte(port)
	return rec
}

func TestDecodeMasterListIPv4(t *testing.T) {
	pkt := append([]byte{}, magicList...)
	pkt = append(pkt, ipv4Record(127, 0, 0, 1, 8303)...)
	pkt = append(pkt, ipv4Record(1, 2, 3, 4, 8304)...)

	addrs, err := DecodeMasterList(pkt)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "127.0.0.1", addrs[0].IP)
	assert.Equal(t, "8303", addrs[0].Port)
	assert.Equal(t, "1.2.3.4", addrs[1].IP)
	assert.Equal(t, "8304", addrs[1].Port)
}

func TestDecodeMasterListIPv6NoCompression(t *testing.T) {
	pkt := append([]byte{}, magicList...)
	pkt = append(pkt, ipv6Record([8]uint16{0x2001, 0x0db8, 0, 0, 0, 0, 0, 1}, 8303)...)

	addrs, err := DecodeMasterList(pkt)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "2001:0db8:0000:0000:0000:0000:0000:0001", addrs[0].IP)
}

func TestDecodeMasterListRejectsMissingMagic(t *testing.T) {
	_, err := DecodeMasterList([]byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeMasterListIgnoresTrailingPartialRecord(t *testing.T) {
	pkt := append([]byte{}, magicList...)
	pkt = append(pkt, ipv4Record(10, 0, 0, 1, 8303)...)
	pkt = append(pkt, []byte{1, 2, 3}...)

	addrs, err := DecodeMasterList(pkt)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}
