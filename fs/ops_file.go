package fs

import (
	"math"

	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fserr"
)

// Open opens a regular file and returns its handle.
func (fs *FS) Open(ip common.Inum, flags uint32) (uint32, error) {
	fd, err := fs.openFd(ip, false, flags)
	if err != nil {
		return 0, err
	}
	h := fs.nextHandle()
	fs.fds[h] = fd
	return h, nil
}

// Close releases a file handle. Handles must be closed exactly once.
func (fs *FS) Close(h uint32) error {
	fd, ok := fs.fds[h]
	if !ok {
		return fserr.InvalidFileHandle
	}
	delete(fs.fds, h)
	fs.closeFd(fd)
	return nil
}

// Read fills dst from the handle's cursor. eof reports a read that
// wanted more bytes than the file had left.
func (fs *FS) Read(h uint32, dst []byte) (uint32, bool, error) {
	fd, ok := fs.fds[h]
	if !ok {
		return 0, false, fserr.InvalidFileHandle
	}
	if fd.Flags&ORead == 0 {
		return 0, false, fserr.NotReadable
	}
	n, eof, err := fd.Read(dst)
	return uint32(n), eof, err
}

// Write stores src at the handle's cursor and persists the inode's
// new size and mtime.
func (fs *FS) Write(h uint32, src []byte) (uint32, error) {
	fd, ok := fs.fds[h]
	if !ok {
		return 0, fserr.InvalidFileHandle
	}
	if fd.Flags&OWrite == 0 {
		return 0, fserr.NotWritable
	}
	n, werr := fd.Write(src)
	if n > 0 {
		lv := fd.Live()
		rec, ok := fs.st.Itab.ReadRec(lv.Ip)
		if !ok {
			panic("fs: write to file with absent inode")
		}
		rec.Size = lv.Size
		rec.Mtime = now()
		fs.st.Itab.WriteRec(lv.Ip, rec)
	}
	return uint32(n), werr
}

// Seek repositions the cursor. The target must land in [0, size].
func (fs *FS) Seek(h uint32, offset int64, whence Whence) error {
	fd, ok := fs.fds[h]
	if !ok {
		return fserr.InvalidFileHandle
	}
	var base int64
	switch whence {
	case SeekAbs:
		base = 0
	case SeekCur:
		base = int64(fd.Tell())
	case SeekEnd:
		base = int64(fd.Size())
	default:
		return fserr.InvalidOffset
	}
	target := base + offset
	if target < 0 || target > math.MaxUint32 {
		return fserr.InvalidOffset
	}
	return fd.SetOffset(uint32(target))
}

// Tell reports the cursor's absolute offset.
func (fs *FS) Tell(h uint32) (uint32, error) {
	fd, ok := fs.fds[h]
	if !ok {
		return 0, fserr.InvalidFileHandle
	}
	return fd.Tell(), nil
}

// Eof reports whether the cursor sits at the end of the file.
func (fs *FS) Eof(h uint32) (bool, error) {
	fd, ok := fs.fds[h]
	if !ok {
		return false, fserr.InvalidFileHandle
	}
	return fd.AtEOF(), nil
}
