// Package file implements byte-granular file I/O over the two-level
// block index: a per-file root index block whose first half holds
// direct data pointers and whose second half holds pointers to
// indirect blocks full of data pointers.
package file

import (
	"encoding/binary"

	"github.com/blkfs/blkfs/alloc"
	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/blkpool"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/inode"
)

// Store bundles the subsystems every file operation needs.
type Store struct {
	Dev   blkdev.Device
	Alloc *alloc.Alloc
	Itab  *inode.Table
	Pool  *blkpool.Pool
}

// B reports the device block size.
func (st *Store) B() uint64 {
	return st.Dev.BlockSize()
}

// Threshold is the first file offset addressed through an indirect
// block: the direct half holds B/4 pointers covering B bytes each.
func (st *Store) Threshold() uint64 {
	b := st.B()
	return (b / 4) * b
}

// MaxFileSize is the largest representable file: the direct region
// plus B/4 indirect blocks of B/2 data pointers each, capped by the
// 32-bit size field.
func (st *Store) MaxFileSize() uint64 {
	b := st.B()
	max := st.Threshold() + (b/4)*(b/2)*b
	if max > 0xFFFFFFFF {
		max = 0xFFFFFFFF
	}
	return max
}

// readBlock loads bn into buf. A device that reports the block as not
// ready violates the engine's synchronous model.
func (st *Store) readBlock(buf []byte, bn common.Bnum) {
	err := st.Dev.ReadBlock(buf, bn)
	if err != nil {
		panic("file: block read failed: " + err.Error())
	}
}

// readPtr returns the block pointer stored at byte offset off of
// block bn.
func (st *Store) readPtr(bn common.Bnum, off uint64) common.Bnum {
	buf := st.Pool.Take()
	defer st.Pool.Give(buf)
	st.readBlock(buf, bn)
	return binary.BigEndian.Uint16(buf[off : off+2])
}

// writePtr stores v at byte offset off of block bn.
func (st *Store) writePtr(bn common.Bnum, off uint64, v common.Bnum) {
	buf := st.Pool.Take()
	defer st.Pool.Give(buf)
	st.readBlock(buf, bn)
	binary.BigEndian.PutUint16(buf[off:off+2], v)
	st.Dev.WriteBlock(bn, buf)
}

// allocZeroed takes a block from the freelist and zeroes it.
func (st *Store) allocZeroed() (common.Bnum, bool) {
	bn := st.Alloc.AllocNum()
	if bn == common.NULLBNUM {
		return common.NULLBNUM, false
	}
	st.Dev.ZeroBlock(bn)
	return bn, true
}
