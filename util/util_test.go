package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMin(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(2), Min(2, 3))
	assert.Equal(uint64(2), Min(3, 2))
	assert.Equal(uint64(2), Min(2, 2))
}

func TestRoundUp(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(4), RoundUp(10, 3))
	assert.Equal(uint64(3), RoundUp(9, 3), "exact division")
	assert.Equal(uint64(0), RoundUp(0, 3))
	assert.Equal(uint64(9), RoundUp(512*8+511, 512))
	assert.Equal(uint64(9), RoundUp(512*8+1, 512), "round up by sz-1")
}

func TestSumOverflows32(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(false, SumOverflows32(1<<31, 1<<31-1))
	assert.Equal(false, SumOverflows32(1<<32-2, 1))
	assert.Equal(false, SumOverflows32(1, 1<<32-2))

	assert.Equal(true, SumOverflows32(1, 1<<32-1))
	assert.Equal(true, SumOverflows32(1<<32-1, 1))
	assert.Equal(true, SumOverflows32(1<<31, 1<<31))
}

func TestCloneByteSlice(t *testing.T) {
	s := []byte{1, 2, 3}
	s2 := CloneByteSlice(s)
	assert.Equal(t, s, s2)
	s2[0] = 9
	assert.Equal(t, byte(1), s[0], "clone must not alias")
}
