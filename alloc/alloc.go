// Package alloc manages the persistent block freelist: an on-disk
// bitmap covering every device block, mirrored by an in-memory stack
// of free block numbers for O(1) allocation.
//
// Bit i set means block i is free. The bitmap occupies a contiguous
// block range; every mutation writes the affected bitmap block back to
// the device before returning.
package alloc

import (
	"log"

	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/util"
)

type Alloc struct {
	d       blkdev.Device
	start   common.Bnum // first bitmap block
	nBitmap uint64      // bitmap length in blocks
	bits    []byte      // in-memory copy of the bitmap region
	free    []common.Bnum
}

func bitIsSet(bits []byte, n uint64) bool {
	return bits[n/8]&(1<<(n%8)) != 0
}

func setBit(bits []byte, n uint64) {
	bits[n/8] |= 1 << (n % 8)
}

func clearBit(bits []byte, n uint64) {
	bits[n/8] &= ^byte(1 << (n % 8))
}

// BitmapLen reports how many blocks the bitmap occupies on a device
// with the given geometry.
func BitmapLen(blockSize uint64, numBlocks uint64) uint64 {
	return util.RoundUp(numBlocks, 8*blockSize)
}

func mkAlloc(d blkdev.Device, start common.Bnum) *Alloc {
	nBitmap := BitmapLen(d.BlockSize(), d.NumBlocks())
	return &Alloc{
		d:       d,
		start:   start,
		nBitmap: nBitmap,
		bits:    make([]byte, nBitmap*d.BlockSize()),
	}
}

// CreateAlloc formats a fresh freelist at start. Blocks up to and
// including the bitmap itself are marked occupied; everything after is
// free.
func CreateAlloc(d blkdev.Device, start common.Bnum) *Alloc {
	a := mkAlloc(d, start)
	for bn := uint64(start) + a.nBitmap; bn < d.NumBlocks(); bn++ {
		setBit(a.bits, bn)
	}
	for i := uint64(0); i < a.nBitmap; i++ {
		a.writeback(i)
	}
	a.fillStack()
	return a
}

// LoadAlloc reads an existing freelist from the device.
func LoadAlloc(d blkdev.Device, start common.Bnum) *Alloc {
	a := mkAlloc(d, start)
	bsz := d.BlockSize()
	for i := uint64(0); i < a.nBitmap; i++ {
		err := d.ReadBlock(a.bits[i*bsz:(i+1)*bsz], a.start+common.Bnum(i))
		if err != nil {
			panic("alloc: bitmap read failed: " + err.Error())
		}
	}
	a.fillStack()
	return a
}

// fillStack scans the bitmap from the highest block down so that the
// top of the stack is the lowest free block.
func (a *Alloc) fillStack() {
	a.free = a.free[:0]
	for bn := a.d.NumBlocks(); bn > 0; bn-- {
		if bitIsSet(a.bits, bn-1) {
			a.free = append(a.free, common.Bnum(bn-1))
		}
	}
}

// writeback persists bitmap block i.
func (a *Alloc) writeback(i uint64) {
	bsz := a.d.BlockSize()
	a.d.WriteBlock(a.start+common.Bnum(i), a.bits[i*bsz:(i+1)*bsz])
}

func (a *Alloc) writebackBit(bn uint64) {
	a.writeback(bn / (8 * a.d.BlockSize()))
}

// DataStart reports the first block past the bitmap.
func (a *Alloc) DataStart() common.Bnum {
	return a.start + common.Bnum(a.nBitmap)
}

// AllocNum pops the top of the free stack, or NULLBNUM if the device
// is full. A freshly loaded stack pops the lowest block numbers first;
// freed blocks are reused most-recently-freed first.
func (a *Alloc) AllocNum() common.Bnum {
	n := len(a.free)
	if n == 0 {
		return common.NULLBNUM
	}
	bn := a.free[n-1]
	a.free = a.free[:n-1]
	if !bitIsSet(a.bits, uint64(bn)) {
		panic("alloc: free stack out of sync with bitmap")
	}
	clearBit(a.bits, uint64(bn))
	a.writebackBit(uint64(bn))
	util.DPrintf(5, "alloc: block %d\n", bn)
	return bn
}

// FreeNum marks bn free again.
func (a *Alloc) FreeNum(bn common.Bnum) {
	if bn == common.NULLBNUM || uint64(bn) < uint64(a.DataStart()) {
		log.Fatalf("alloc: illegal block to free: %d", bn)
	}
	if bitIsSet(a.bits, uint64(bn)) {
		log.Fatalf("alloc: double free of block %d", bn)
	}
	setBit(a.bits, uint64(bn))
	a.free = append(a.free, bn)
	a.writebackBit(uint64(bn))
	util.DPrintf(5, "alloc: free block %d\n", bn)
}

// NumFree reports how many blocks are currently available.
func (a *Alloc) NumFree() uint64 {
	return uint64(len(a.free))
}
