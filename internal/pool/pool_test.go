package pool

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerank/teerank-update/internal/transport"
)

func TestPollSendsIdleEntriesAndMatchesReply(t *testing.T) {
	server, err := transport.Open()
	require.NoError(t, err)
	defer server.Close()

	client, err := transport.Open()
	require.NoError(t, err)
	defer client.Close()

	// Address the server by loopback rather than its wildcard local
	// address, so the reply's source address matches the entry.
	serverAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: server.V4LocalAddr().(*net.UDPAddr).Port}

	p := New(client)
	p.Add(&Entry{Addr: serverAddr, Request: []byte("ping"), Owner: 1})

	go func() {
		pkt, ok, err := server.Receive()
		if err != nil || !ok {
			return
		}
		server.Send([]byte("pong"), pkt.Addr)
	}()

	entry, pkt, ok, err := p.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, pkt)
	assert.Equal(t, []byte("pong"), pkt.Data)
	assert.Equal(t, 1, entry.Owner)
	assert.True(t, entry.Polled)
}

func TestPollReportsFailedAfterRetriesExhausted(t *testing.T) {
	server, err := transport.Open()
	require.NoError(t, err)
	defer server.Close()

	client, err := transport.Open()
	require.NoError(t, err)
	defer client.Close()

	p := New(client)
	p.Add(&Entry{Addr: server.V4LocalAddr(), Request: []byte("ping"), Owner: 42})

	var failed *Entry
	for i := 0; i <= MaxRetries; i++ {
		entry, _, ok, err := p.Poll()
		require.NoError(t, err)
		require.True(t, ok)
		if entry.retries >= MaxRetries {
			failed = entry
			break
		}
	}

	require.NotNil(t, failed)
	assert.Equal(t, 42, failed.Owner)
}

func TestFillPendingResetsPolledOnReEntry(t *testing.T) {
	client, err := transport.Open()
	require.NoError(t, err)
	defer client.Close()

	p := New(client)
	entry := &Entry{Addr: client.V4LocalAddr(), Request: []byte("x"), Owner: 1, Polled: true}
	p.idle = append(p.idle, entry)

	p.fillPending(time.Now())

	assert.False(t, entry.Polled)
	assert.Len(t, p.pending, 1)
}

func TestRemoveFromPending(t *testing.T) {
	client, err := transport.Open()
	require.NoError(t, err)
	defer client.Close()

	p := New(client)
	entry := &Entry{Owner: 1}
	p.pending = append(p.pending, entry)

	p.RemoveFromPending(entry)
	assert.Empty(t, p.pending)
}

func TestLenReportsEachList(t *testing.T) {
	p := New(nil)
	p.idle = append(p.idle, &Entry{})
	p.pending = append(p.pending, &Entry{}, &Entry{})
	p.failed = append(p.failed, &Entry{})

	idle, pending, failed := p.Len()
	assert.Equal(t, 1, idle)
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, failed)
}
