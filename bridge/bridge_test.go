package bridge_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/bridge"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fs"
	"github.com/blkfs/blkfs/fserr"
)

func setName(b *bridge.Bridge, name string) {
	for i := range b.StrBuf {
		b.StrBuf[i] = 0
	}
	copy(b.StrBuf, name)
}

func mount(t *testing.T, b *bridge.Bridge) (uint32, blkdev.Device) {
	t.Helper()
	d := blkdev.NewMemDisk(512, 1024)
	require.Equal(t, int32(common.CONFIGSZ), b.Format(d, 8))
	id := b.Init(d)
	require.Greater(t, id, int32(0))
	return uint32(id), d
}

func TestLifecycle(t *testing.T) {
	assert := assert.New(t)
	b := bridge.MkBridge(4096, 64)
	id, _ := mount(t, b)

	setName(b, "hello")
	ip := b.Create(id, common.ROOTINUM)
	require.True(t, ip >= 0)

	h := b.Open(uint32(id), common.Inum(ip), fs.ORead|fs.OWrite)
	require.True(t, h > 0)

	copy(b.Shuttle, "Hello, World!")
	assert.Equal(int32(13), b.Write(id, uint32(h), 13))
	assert.Equal(int32(0), b.Seek(id, uint32(h), 0, 0))
	assert.Equal(int32(13), b.Read(id, uint32(h), 13))
	assert.Equal("Hello, World!", string(b.Shuttle[:13]))
	assert.Equal(int32(1), b.Eof(id, uint32(h)))
	assert.Equal(int32(13), b.Tell(id, uint32(h)))
	assert.Equal(int32(0), b.Close(id, uint32(h)))

	setName(b, "hello")
	assert.Equal(int32(1), b.Exists(id, common.ROOTINUM))
	assert.Equal(ip, b.Lookup(id, common.ROOTINUM))
	assert.Equal(int32(0), b.Unlink(id, common.ROOTINUM))
	assert.Equal(int32(0), b.Exists(id, common.ROOTINUM))

	assert.Equal(int32(0), b.Destroy(id))
}

func TestErrorCodes(t *testing.T) {
	assert := assert.New(t)
	b := bridge.MkBridge(4096, 64)
	id, _ := mount(t, b)

	setName(b, "absent")
	assert.Equal(-fserr.NoEnt.Code(), b.Lookup(id, common.ROOTINUM))
	assert.Equal(-fserr.NoEnt.Code(), b.Unlink(id, common.ROOTINUM))

	setName(b, "d")
	require.True(t, b.Mkdir(id, common.ROOTINUM) >= 0)
	assert.Equal(-fserr.Exists.Code(), b.Mkdir(id, common.ROOTINUM))

	assert.Equal(-fserr.InvalidFileHandle.Code(), b.Close(id, 999))
	assert.Equal(-fserr.InvalidFSParams.Code(), b.Tell(77, 1), "unknown mount id")
}

func TestStatWire(t *testing.T) {
	assert := assert.New(t)
	b := bridge.MkBridge(4096, 64)
	id, _ := mount(t, b)

	setName(b, "prog")
	ip := b.Create(id, common.ROOTINUM)
	require.True(t, ip >= 0)

	h := b.OpenDir(id, common.ROOTINUM)
	require.True(t, h > 0)
	n := b.ReadDir(id, uint32(h))
	require.Equal(t, int32(bridge.StatWireSz), n)

	w := b.Shuttle[:bridge.StatWireSz]
	assert.Equal(byte('p'), w[0])
	assert.Equal(byte(0), w[14], "name is NUL-terminated")
	assert.Equal(uint32(ip), binary.BigEndian.Uint32(w[15:19]))
	assert.Equal(byte(fs.KindFile), w[19])
	assert.Equal(byte(0), w[20], "not executable")
	assert.Equal(uint32(0), binary.BigEndian.Uint32(w[25:29]), "empty file")

	assert.Equal(int32(0), b.ReadDir(id, uint32(h)), "end of directory")
	assert.Equal(int32(0), b.CloseDir(id, uint32(h)))
}

func TestDeviceBusyThroughBridge(t *testing.T) {
	b := bridge.MkBridge(4096, 64)
	d := blkdev.NewMemDisk(512, 1024)
	require.Equal(t, int32(common.CONFIGSZ), b.Format(d, 8))
	id := b.Init(d)
	require.Greater(t, id, int32(0))
	assert.Equal(t, -fserr.Busy.Code(), b.Init(d))
	b.Destroy(uint32(id))
}
