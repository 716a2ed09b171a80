package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/alloc"
	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/common"
)

func TestBitmapLen(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(1), alloc.BitmapLen(512, 1024))
	assert.Equal(uint64(1), alloc.BitmapLen(512, 4096))
	assert.Equal(uint64(2), alloc.BitmapLen(512, 4097))
	assert.Equal(uint64(16), alloc.BitmapLen(512, 65536))
}

func TestCreateAlloc(t *testing.T) {
	assert := assert.New(t)
	d := blkdev.NewMemDisk(512, 64)
	a := alloc.CreateAlloc(d, 9)

	// blocks [0, 9+1) occupied, [10, 64) free
	assert.Equal(common.Bnum(10), a.DataStart())
	assert.Equal(uint64(54), a.NumFree())

	assert.Equal(common.Bnum(10), a.AllocNum(), "lowest block first")
	assert.Equal(common.Bnum(11), a.AllocNum())
	assert.Equal(uint64(52), a.NumFree())
}

func TestAllocExhaustion(t *testing.T) {
	assert := assert.New(t)
	d := blkdev.NewMemDisk(512, 16)
	a := alloc.CreateAlloc(d, 1)

	var got []common.Bnum
	for {
		bn := a.AllocNum()
		if bn == common.NULLBNUM {
			break
		}
		got = append(got, bn)
	}
	assert.Len(got, 14, "blocks 2..15")
	assert.Equal(uint64(0), a.NumFree())

	a.FreeNum(got[3])
	assert.Equal(got[3], a.AllocNum(), "freed block is reusable")
}

func TestLoadAlloc(t *testing.T) {
	assert := assert.New(t)
	d := blkdev.NewMemDisk(512, 64)
	a := alloc.CreateAlloc(d, 9)

	b1 := a.AllocNum()
	b2 := a.AllocNum()
	a.FreeNum(b1)

	// reopen from the persisted bitmap
	a2 := alloc.LoadAlloc(d, 9)
	assert.Equal(a.NumFree(), a2.NumFree())
	assert.Equal(b1, a2.AllocNum(), "lowest free block pops first after load")
	next := a2.AllocNum()
	assert.NotEqual(b2, next, "allocated block must stay allocated across load")
	assert.Equal(common.Bnum(12), next)
}

func TestFreeNeverHandsOutReserved(t *testing.T) {
	d := blkdev.NewMemDisk(128, 32)
	a := alloc.CreateAlloc(d, 1)
	for {
		bn := a.AllocNum()
		if bn == common.NULLBNUM {
			break
		}
		require.True(t, bn >= a.DataStart(), "block %d is reserved", bn)
	}
}
