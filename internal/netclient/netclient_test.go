package netclient

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerank/teerank-update/internal/model"
)

type stubResolver struct{}

func (stubResolver) Resolve(node, service string) (net.Addr, error) {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8303}, nil
}

type failingResolver struct{}

func (failingResolver) Resolve(node, service string) (net.Addr, error) {
	return nil, assert.AnError
}

func TestAddServerAssignsStableSlot(t *testing.T) {
	r := New(stubResolver{})

	c, err := r.AddServer(&model.Server{IP: "1.2.3.4", Port: "8303"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	slot := c.Slot()
	assert.Same(t, c, r.Client(slot))
}

func TestRemoveReturnsSlotToFreeList(t *testing.T) {
	r := New(stubResolver{})

	c1, err := r.AddServer(&model.Server{IP: "1.2.3.4", Port: "8303"})
	require.NoError(t, err)
	slot := c1.Slot()

	r.Remove(c1)
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Client(slot))

	c2, err := r.AddMaster(&model.Master{Node: "master1.teeworlds.com", Service: "8300"})
	require.NoError(t, err)
	assert.Equal(t, slot, c2.Slot(), "the freed slot should be reused")
}

func TestAddServerFailsOnResolveError(t *testing.T) {
	r := New(failingResolver{})

	_, err := r.AddServer(&model.Server{IP: "bad", Port: "0"})
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len(), "a failed resolve must return the slot to the free list")
}

func TestAddServerFailsWhenFull(t *testing.T) {
	r := New(stubResolver{})
	for i := 0; i < Capacity; i++ {
		_, err := r.AddServer(&model.Server{IP: "1.2.3.4", Port: "8303"})
		require.NoError(t, err)
	}

	_, err := r.AddServer(&model.Server{IP: "1.2.3.4", Port: "8303"})
	assert.ErrorAs(t, err, &ErrCapacityExceeded{})
}

func TestClientReturnsNilForUnoccupiedSlot(t *testing.T) {
	r := New(stubResolver{})
	assert.Nil(t, r.Client(0))
	assert.Nil(t, r.Client(-1))
	assert.Nil(t, r.Client(Capacity))
}
