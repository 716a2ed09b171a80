package dir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkfs/blkfs/alloc"
	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/blkpool"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/dir"
	"github.com/blkfs/blkfs/file"
	"github.com/blkfs/blkfs/inode"
)

func mkDirFd(t *testing.T) *file.Fd {
	t.Helper()
	d := blkdev.NewMemDisk(512, 256)
	pool := blkpool.MkPool(512)
	itab := inode.CreateTable(d, pool, 1, 8)
	a := alloc.CreateAlloc(d, 9)
	st := &file.Store{Dev: d, Alloc: a, Itab: itab, Pool: pool}

	rootBlk, err := file.CreateBlank(st)
	require.NoError(t, err)
	return file.MkFd(st, file.MkLive(0, rootBlk, 0))
}

func TestInsertLookup(t *testing.T) {
	assert := assert.New(t)
	fd := mkDirFd(t)

	_, _, found, insertOff := dir.Scan(fd, "alpha")
	assert.False(found)
	assert.Equal(uint32(0), insertOff, "empty directory appends at 0")

	require.NoError(t, dir.WriteAt(fd, insertOff, dir.Ent{Name: "alpha", Ip: 7}))
	require.NoError(t, dir.WriteAt(fd, 16, dir.Ent{Name: "beta", Ip: 8}))

	ip, off, found := dir.Lookup(fd, "alpha")
	require.True(t, found)
	assert.Equal(common.Inum(7), ip)
	assert.Equal(uint32(0), off)

	ip, off, found = dir.Lookup(fd, "beta")
	require.True(t, found)
	assert.Equal(common.Inum(8), ip)
	assert.Equal(uint32(16), off)

	_, _, found = dir.Lookup(fd, "gamma")
	assert.False(found)
}

func TestTombstoneSlotReuse(t *testing.T) {
	assert := assert.New(t)
	fd := mkDirFd(t)

	require.NoError(t, dir.WriteAt(fd, 0, dir.Ent{Name: "a", Ip: 1}))
	require.NoError(t, dir.WriteAt(fd, 16, dir.Ent{Name: "b", Ip: 2}))
	require.NoError(t, dir.WriteAt(fd, 32, dir.Ent{Name: "c", Ip: 3}))

	require.NoError(t, dir.Erase(fd, 16))
	_, _, found := dir.Lookup(fd, "b")
	assert.False(found, "erased entry is gone")

	_, _, _, insertOff := dir.Scan(fd, "d")
	assert.Equal(uint32(16), insertOff, "insert reuses the first tombstone")

	require.NoError(t, dir.Erase(fd, 0))
	_, _, _, insertOff = dir.Scan(fd, "d")
	assert.Equal(uint32(0), insertOff)
}

func TestScanAppendsWhenFull(t *testing.T) {
	fd := mkDirFd(t)
	require.NoError(t, dir.WriteAt(fd, 0, dir.Ent{Name: "a", Ip: 1}))
	require.NoError(t, dir.WriteAt(fd, 16, dir.Ent{Name: "b", Ip: 2}))

	_, _, _, insertOff := dir.Scan(fd, "c")
	assert.Equal(t, uint32(32), insertOff, "no tombstones: append at end")
}

func TestIteration(t *testing.T) {
	assert := assert.New(t)
	fd := mkDirFd(t)

	require.NoError(t, dir.WriteAt(fd, 0, dir.Ent{Name: "a", Ip: 1}))
	require.NoError(t, dir.WriteAt(fd, 16, dir.Ent{Name: "b", Ip: 2}))
	require.NoError(t, dir.WriteAt(fd, 32, dir.Ent{Name: "c", Ip: 3}))
	require.NoError(t, dir.Erase(fd, 16))

	require.NoError(t, fd.SetOffset(0))
	var names []string
	for {
		e, ok := dir.NextLive(fd)
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	assert.Equal([]string{"a", "c"}, names, "iteration skips tombstones")

	assert.False(dir.Empty(fd))
	require.NoError(t, dir.Erase(fd, 0))
	require.NoError(t, dir.Erase(fd, 32))
	assert.True(dir.Empty(fd))
}

func TestFourteenByteName(t *testing.T) {
	assert := assert.New(t)
	fd := mkDirFd(t)

	name := "fourteen-chars"
	require.Len(t, name, common.MAXNAMELEN)
	require.NoError(t, dir.WriteAt(fd, 0, dir.Ent{Name: name, Ip: 5}))

	ip, _, found := dir.Lookup(fd, name)
	require.True(t, found)
	assert.Equal(common.Inum(5), ip)

	require.NoError(t, fd.SetOffset(0))
	e, ok := dir.Next(fd)
	require.True(t, ok)
	assert.Equal(name, e.Name, "unterminated 14-byte name round-trips")
}
