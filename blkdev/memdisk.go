package blkdev

import (
	"fmt"

	"github.com/blkfs/blkfs/common"
)

var _ Device = (*MemDisk)(nil)

// MemDisk is a device held entirely in memory.
type MemDisk struct {
	devCore
	blockSize uint64
	blocks    [][]byte
}

func NewMemDisk(blockSize uint64, numBlocks uint64) *MemDisk {
	checkGeometry(blockSize, numBlocks)
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &MemDisk{
		devCore:   devCore{id: mkDevID()},
		blockSize: blockSize,
		blocks:    blocks,
	}
}

func (d *MemDisk) BlockSize() uint64 {
	return d.blockSize
}

func (d *MemDisk) NumBlocks() uint64 {
	return uint64(len(d.blocks))
}

func (d *MemDisk) checkAccess(buf []byte, bn common.Bnum) {
	if uint64(len(buf)) != d.blockSize {
		panic(fmt.Errorf("buffer is not block-sized (%d bytes)", len(buf)))
	}
	if uint64(bn) >= uint64(len(d.blocks)) {
		panic(fmt.Errorf("out-of-bounds access at %v", bn))
	}
}

func (d *MemDisk) ReadBlock(dst []byte, bn common.Bnum) error {
	d.checkAccess(dst, bn)
	copy(dst, d.blocks[bn])
	return nil
}

func (d *MemDisk) WriteBlock(bn common.Bnum, src []byte) {
	d.checkAccess(src, bn)
	copy(d.blocks[bn], src)
	d.notifyWrite(bn)
}

func (d *MemDisk) ZeroBlock(bn common.Bnum) {
	if uint64(bn) >= uint64(len(d.blocks)) {
		panic(fmt.Errorf("out-of-bounds zero at %v", bn))
	}
	blk := d.blocks[bn]
	for i := range blk {
		blk[i] = 0
	}
	d.notifyWrite(bn)
}
