package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpackerReadsNulTerminatedFields(t *testing.T) {
	u := newUnpacker([]byte("ctf\x00128\x00"))

	assert.Equal(t, "ctf", u.str())
	assert.Equal(t, 128, u.int())
	assert.False(t, u.err)
	assert.False(t, u.canUnpack())
}

func TestUnpackerUnterminatedFieldSetsStickyError(t *testing.T) {
	u := newUnpacker([]byte("ctf\x00no terminator"))

	assert.Equal(t, "ctf", u.str())
	assert.Equal(t, "", u.str())
	assert.True(t, u.err)

	// Once err is set, further reads stay zero and the cursor stops
	// advancing.
	assert.Equal(t, 0, u.int())
	assert.True(t, u.err)
}

func TestUnpackerNonNumericIntSetsError(t *testing.T) {
	u := newUnpacker([]byte("notanumber\x00"))

	assert.Equal(t, 0, u.int())
	assert.True(t, u.err)
}

func TestUnpackerReadingPastEndSetsError(t *testing.T) {
	u := newUnpacker([]byte("one\x00"))
	require.Equal(t, "one", u.str())
	assert.False(t, u.canUnpack())

	assert.Equal(t, "", u.str())
	assert.True(t, u.err)
}
