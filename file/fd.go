package file

import (
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fserr"
	"github.com/blkfs/blkfs/util"
)

// pos names a block plus a byte offset within it. For root and mid the
// offset addresses the pointer currently in use; for data it is the
// byte cursor.
type pos struct {
	blk common.Bnum
	off uint64
}

// Fd is one open instance of a file: a tri-level cursor over the
// index, plus the open flags the facade checks on each operation.
type Fd struct {
	st *Store
	lv *Live

	Flags uint32

	absOff uint64
	root   pos
	mid    pos
	data   pos
	deep   bool

	// refsInvalid marks root/mid/data stale after a seek; they are
	// recomputed from absOff on the next read or write.
	refsInvalid bool
}

// MkFd opens a cursor at offset zero.
func MkFd(st *Store, lv *Live) *Fd {
	fd := &Fd{st: st, lv: lv}
	fd.Reset()
	return fd
}

// Reset rewinds the cursor to offset zero. The first data block always
// exists, even for empty files.
func (fd *Fd) Reset() {
	fd.absOff = 0
	fd.root = pos{fd.lv.RootBlk, 0}
	fd.data = pos{fd.st.readPtr(fd.lv.RootBlk, 0), 0}
	fd.mid = pos{}
	fd.deep = false
	fd.refsInvalid = false
}

func (fd *Fd) Live() *Live {
	return fd.lv
}

func (fd *Fd) Size() uint32 {
	return fd.lv.Size
}

func (fd *Fd) Tell() uint32 {
	return uint32(fd.absOff)
}

func (fd *Fd) AtEOF() bool {
	return fd.absOff >= uint64(fd.lv.Size)
}

// SetOffset seeks to an absolute offset in [0, size]. The index walk
// is deferred until the next I/O.
func (fd *Fd) SetOffset(off uint32) error {
	if uint64(off) > uint64(fd.lv.Size) {
		return fserr.InvalidOffset
	}
	fd.absOff = uint64(off)
	fd.refsInvalid = true
	return nil
}

// Read copies up to len(dst) bytes from the cursor. eof reports that
// the caller asked for more than the file had left.
func (fd *Fd) Read(dst []byte) (uint64, bool, error) {
	want := uint64(len(dst))
	avail := uint64(fd.lv.Size) - fd.absOff
	n := util.Min(want, avail)
	if n == 0 {
		return 0, want > 0, nil
	}
	if fd.refsInvalid {
		fd.updateRefs()
	}

	b := fd.st.B()
	buf := fd.st.Pool.Take()
	defer fd.st.Pool.Give(buf)

	done := uint64(0)
	for done < n {
		if fd.data.off == b {
			if err := fd.advance(); err != nil {
				return done, false, err
			}
		}
		chunk := util.Min(n-done, b-fd.data.off)
		fd.st.readBlock(buf, fd.data.blk)
		copy(dst[done:done+chunk], buf[fd.data.off:fd.data.off+chunk])
		fd.data.off += chunk
		fd.absOff += chunk
		done += chunk
	}
	return n, want > n, nil
}

// Write copies src at the cursor, allocating blocks as the file grows.
// A write past the index's capacity stops at the limit and fails with
// NoSpace; bytes written up to that point stay written.
func (fd *Fd) Write(src []byte) (uint64, error) {
	want := uint64(len(src))
	if want == 0 {
		return 0, nil
	}
	if fd.refsInvalid {
		fd.updateRefs()
	}

	limit := fd.st.MaxFileSize() - fd.absOff
	n := util.Min(want, limit)

	b := fd.st.B()
	buf := fd.st.Pool.Take()
	defer fd.st.Pool.Give(buf)

	done := uint64(0)
	for done < n {
		if fd.data.off == b {
			if err := fd.advance(); err != nil {
				return done, err
			}
		}
		chunk := util.Min(n-done, b-fd.data.off)
		fd.st.readBlock(buf, fd.data.blk)
		copy(buf[fd.data.off:fd.data.off+chunk], src[done:done+chunk])
		fd.st.Dev.WriteBlock(fd.data.blk, buf)
		fd.data.off += chunk
		fd.absOff += chunk
		done += chunk
		if fd.absOff > uint64(fd.lv.Size) {
			fd.lv.Size = uint32(fd.absOff)
		}
	}
	if n < want {
		return done, fserr.NoSpace
	}
	return done, nil
}
