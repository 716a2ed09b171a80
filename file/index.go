package file

import (
	"encoding/binary"

	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fserr"
)

// advance moves the cursor to the next data block, allocating index
// and data blocks as needed. Called only when data.off == B.
func (fd *Fd) advance() error {
	st := fd.st
	b := st.B()
	half := b / 2

	if !fd.deep && fd.root.off+2 < half {
		// next direct pointer
		fd.root.off += 2
		ptr := st.readPtr(fd.root.blk, fd.root.off)
		if ptr == common.NULLBNUM {
			var ok bool
			ptr, ok = st.allocZeroed()
			if !ok {
				return fserr.NoSpace
			}
			st.writePtr(fd.root.blk, fd.root.off, ptr)
		}
		fd.data = pos{ptr, 0}
		return nil
	}

	if !fd.deep {
		// crossing from direct to indirect territory
		fd.root.off = half
		iptr := st.readPtr(fd.root.blk, fd.root.off)
		if iptr == common.NULLBNUM {
			var ok bool
			iptr, ok = st.allocZeroed()
			if !ok {
				return fserr.NoSpace
			}
			st.writePtr(fd.root.blk, fd.root.off, iptr)
		}
		dptr := st.readPtr(iptr, 0)
		if dptr == common.NULLBNUM {
			var ok bool
			dptr, ok = st.allocZeroed()
			if !ok {
				return fserr.NoSpace
			}
			st.writePtr(iptr, 0, dptr)
		}
		fd.mid = pos{iptr, 0}
		fd.data = pos{dptr, 0}
		fd.deep = true
		return nil
	}

	if fd.mid.off+2 < b {
		// next data pointer within the current indirect block
		fd.mid.off += 2
		dptr := st.readPtr(fd.mid.blk, fd.mid.off)
		if dptr == common.NULLBNUM {
			var ok bool
			dptr, ok = st.allocZeroed()
			if !ok {
				return fserr.NoSpace
			}
			st.writePtr(fd.mid.blk, fd.mid.off, dptr)
		}
		fd.data = pos{dptr, 0}
		return nil
	}

	if fd.root.off+2 < b {
		// next indirect slot
		fd.root.off += 2
		iptr := st.readPtr(fd.root.blk, fd.root.off)
		if iptr == common.NULLBNUM {
			var ok bool
			iptr, ok = st.allocZeroed()
			if !ok {
				return fserr.NoSpace
			}
			st.writePtr(fd.root.blk, fd.root.off, iptr)
		}
		dptr := st.readPtr(iptr, 0)
		if dptr == common.NULLBNUM {
			var ok bool
			dptr, ok = st.allocZeroed()
			if !ok {
				return fserr.NoSpace
			}
			st.writePtr(iptr, 0, dptr)
		}
		fd.mid = pos{iptr, 0}
		fd.data = pos{dptr, 0}
		return nil
	}

	return fserr.NoSpace
}

// updateRefs rebuilds root/mid/data from absOff alone. Every block it
// resolves is within [0, size], so the pointers it reads exist.
func (fd *Fd) updateRefs() {
	st := fd.st
	b := st.B()
	half := b / 2
	threshold := st.Threshold()

	off := fd.absOff
	// At end-of-file on an exact block boundary there is no block for
	// the cursor to sit in yet; resolve the last existing block and
	// park the byte cursor at its end so the next write advances.
	prime := off == uint64(fd.lv.Size) && off > 0 && off%b == 0
	if prime {
		off--
	}

	if off < threshold {
		fd.deep = false
		fd.root = pos{fd.lv.RootBlk, (off / b) * 2}
		fd.mid = pos{}
		fd.data = pos{st.readPtr(fd.root.blk, fd.root.off), off % b}
	} else {
		fd.deep = true
		span := half * b // bytes covered per indirect block
		k := (off - threshold) / span
		fd.root = pos{fd.lv.RootBlk, half + k*2}
		iptr := st.readPtr(fd.root.blk, fd.root.off)
		fd.mid = pos{iptr, ((off - threshold) % span / b) * 2}
		fd.data = pos{st.readPtr(fd.mid.blk, fd.mid.off), off % b}
	}
	if prime {
		fd.data.off = b
	}
	fd.refsInvalid = false
}

// CreateBlank allocates the index block and first data block of a new
// file and wires them together. On failure nothing stays allocated.
func CreateBlank(st *Store) (common.Bnum, error) {
	rootBlk, ok := st.allocZeroed()
	if !ok {
		return common.NULLBNUM, fserr.NoSpace
	}
	dataBlk, ok := st.allocZeroed()
	if !ok {
		st.Alloc.FreeNum(rootBlk)
		return common.NULLBNUM, fserr.NoSpace
	}
	st.writePtr(rootBlk, 0, dataBlk)
	return rootBlk, nil
}

// TruncateToZero releases every block of the file except the index
// block and the first data block, which is zeroed. The caller resets
// the size.
func TruncateToZero(st *Store, rootBlk common.Bnum) {
	b := st.B()
	half := b / 2

	buf := st.Pool.Take()
	defer st.Pool.Give(buf)
	st.readBlock(buf, rootBlk)

	keep := binary.BigEndian.Uint16(buf[0:2])
	for off := uint64(2); off < half; off += 2 {
		freePtrAt(st, buf, off)
	}
	ibuf := st.Pool.Take()
	defer st.Pool.Give(ibuf)
	for off := half; off < b; off += 2 {
		iptr := binary.BigEndian.Uint16(buf[off : off+2])
		if iptr == common.NULLBNUM {
			continue
		}
		st.readBlock(ibuf, iptr)
		for j := uint64(0); j < b; j += 2 {
			freePtrAt(st, ibuf, j)
		}
		st.Alloc.FreeNum(iptr)
	}

	for i := uint64(2); i < b; i++ {
		buf[i] = 0
	}
	st.Dev.WriteBlock(rootBlk, buf)
	st.Dev.ZeroBlock(keep)
}

// Purge releases every block of the file, the index block included.
// Used after the inode slot has been freed.
func Purge(st *Store, rootBlk common.Bnum) {
	b := st.B()
	half := b / 2

	buf := st.Pool.Take()
	defer st.Pool.Give(buf)
	st.readBlock(buf, rootBlk)

	for off := uint64(0); off < half; off += 2 {
		freePtrAt(st, buf, off)
	}
	ibuf := st.Pool.Take()
	defer st.Pool.Give(ibuf)
	for off := half; off < b; off += 2 {
		iptr := binary.BigEndian.Uint16(buf[off : off+2])
		if iptr == common.NULLBNUM {
			continue
		}
		st.readBlock(ibuf, iptr)
		for j := uint64(0); j < b; j += 2 {
			freePtrAt(st, ibuf, j)
		}
		st.Alloc.FreeNum(iptr)
	}
	st.Alloc.FreeNum(rootBlk)
}

func freePtrAt(st *Store, blk []byte, off uint64) {
	ptr := binary.BigEndian.Uint16(blk[off : off+2])
	if ptr != common.NULLBNUM {
		st.Alloc.FreeNum(ptr)
	}
}
