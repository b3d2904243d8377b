package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfoStartsWithMagic(t *testing.T) {
	req := GetInfo()
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, req[:4])
}

func TestGetListStartsWithMagic(t *testing.T) {
	req := GetList()
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, req[:4])
}
