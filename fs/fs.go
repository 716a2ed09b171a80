// Package fs is the filesystem facade: formatting and mounting a
// device, the open-handle layer, and the public operations over
// (parent inode, name) pairs and handles.
package fs

import (
	"time"

	"github.com/blkfs/blkfs/alloc"
	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/blkpool"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/file"
	"github.com/blkfs/blkfs/fserr"
	"github.com/blkfs/blkfs/inode"
	"github.com/blkfs/blkfs/util"
)

// Open flags.
const (
	OCreate  uint32 = 1 << 0 // reserved; creation is via Create only
	OSeekEnd uint32 = 1 << 1
	OTrunc   uint32 = 1 << 2
	ORead    uint32 = 1 << 3
	OWrite   uint32 = 1 << 4
)

// Whence selects the base for Seek.
type Whence uint8

const (
	SeekAbs Whence = iota
	SeekCur
	SeekEnd
)

// FS is one mounted filesystem instance. It is not safe for use from
// more than one goroutine.
type FS struct {
	dev  blkdev.Device
	st   *file.Store
	live map[common.Inum]*file.Live
	fds  map[uint32]*file.Fd
	dirs map[uint32]*file.Fd
	seq  uint32
}

func now() uint32 {
	return uint32(time.Now().Unix())
}

// inodeStart is where the inode region begins; block 0 holds the
// device geometry and is not managed here.
const inodeStart common.Bnum = 1

func checkGeometry(dev blkdev.Device, inodeBlocks uint64) error {
	bsz := dev.BlockSize()
	if bsz < 32 {
		return fserr.InvalidFSParams
	}
	if inodeBlocks == 0 || inodeBlocks%8 != 0 || inodeBlocks/8 > 256 {
		return fserr.InvalidFSParams
	}
	nblocks := dev.NumBlocks()
	if nblocks > 65536 {
		return fserr.InvalidFSParams
	}
	// room for the reserved block, inodes, the bitmap, and the root
	// directory's index + data pair
	needed := 1 + inodeBlocks + alloc.BitmapLen(bsz, nblocks) + 2
	if needed > nblocks {
		return fserr.InvalidFSParams
	}
	return nil
}

// Format lays a fresh filesystem onto dev: a zeroed inode region, the
// freelist bitmap right after it, and the root directory at inode 0.
// It returns the config header Init requires.
func Format(dev blkdev.Device, inodeBlocks uint64) ([common.CONFIGSZ]byte, error) {
	var cfg [common.CONFIGSZ]byte
	if err := checkGeometry(dev, inodeBlocks); err != nil {
		return cfg, err
	}

	pool := blkpool.MkPool(dev.BlockSize())
	itab := inode.CreateTable(dev, pool, inodeStart, inodeBlocks)
	a := alloc.CreateAlloc(dev, inodeStart+common.Bnum(inodeBlocks))
	st := &file.Store{Dev: dev, Alloc: a, Itab: itab, Pool: pool}

	rootBlk, err := file.CreateBlank(st)
	if err != nil {
		return cfg, err
	}
	ip, ok := itab.Alloc(true, rootBlk, now())
	if !ok || ip != common.ROOTINUM {
		panic("fs: root inode allocation broken")
	}

	cfg = encodeConfig(inodeBlocks)
	util.DPrintf(1, "fs: formatted %d blocks, %d inodes\n",
		dev.NumBlocks(), itab.NInode())
	return cfg, nil
}

// Init mounts a formatted device. The device stays claimed until
// Deinit.
func Init(dev blkdev.Device, cfg [common.CONFIGSZ]byte) (*FS, error) {
	inodeBlocks, err := decodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(dev, inodeBlocks); err != nil {
		return nil, err
	}
	if !dev.Claim() {
		return nil, fserr.Busy
	}

	pool := blkpool.MkPool(dev.BlockSize())
	itab := inode.LoadTable(dev, pool, inodeStart, inodeBlocks)
	a := alloc.LoadAlloc(dev, inodeStart+common.Bnum(inodeBlocks))

	root, ok := itab.ReadRec(common.ROOTINUM)
	if !ok || !root.IsDir() {
		dev.Release()
		return nil, fserr.InvalidFSParams
	}

	fs := &FS{
		dev:  dev,
		st:   &file.Store{Dev: dev, Alloc: a, Itab: itab, Pool: pool},
		live: make(map[common.Inum]*file.Live),
		fds:  make(map[uint32]*file.Fd),
		dirs: make(map[uint32]*file.Fd),
	}
	util.DPrintf(1, "fs: mounted, %d blocks free\n", a.NumFree())
	return fs, nil
}

// Deinit unmounts: drops in-memory state and releases the device. The
// device itself is owned by the caller.
func (fs *FS) Deinit() {
	fs.live = nil
	fs.fds = nil
	fs.dirs = nil
	fs.dev.Release()
}

// FreeBlockCount reports how many blocks the freelist has available.
func (fs *FS) FreeBlockCount() uint64 {
	return fs.st.Alloc.NumFree()
}

// MaxFileSize reports the geometry-determined file size limit.
func (fs *FS) MaxFileSize() uint64 {
	return fs.st.MaxFileSize()
}
