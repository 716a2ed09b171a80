package fs

import (
	"math"

	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/file"
	"github.com/blkfs/blkfs/fserr"
	"github.com/blkfs/blkfs/util"
)

// nextHandle draws from the shared sequence for file and directory
// handles. The sequence wraps at the largest positive 32-bit value, so
// candidates already live in either map are skipped.
func (fs *FS) nextHandle() uint32 {
	for {
		fs.seq++
		if fs.seq > math.MaxInt32 {
			fs.seq = 1
		}
		h := fs.seq
		if _, live := fs.fds[h]; live {
			continue
		}
		if _, live := fs.dirs[h]; live {
			continue
		}
		return h
	}
}

// openFd opens a cursor on ip, creating or sharing the live-file
// record. wantDir selects which inode kind is acceptable.
func (fs *FS) openFd(ip common.Inum, wantDir bool, flags uint32) (*file.Fd, error) {
	rec, ok := fs.st.Itab.ReadRec(ip)
	if !ok {
		return nil, fserr.NoEnt
	}
	if rec.IsDir() && !wantDir {
		return nil, fserr.IsDir
	}
	if !rec.IsDir() && wantDir {
		return nil, fserr.NotDir
	}

	lv, open := fs.live[ip]
	if flags&OTrunc != 0 && open {
		return nil, fserr.Busy
	}
	if !open {
		lv = file.MkLive(ip, rec.DataBlk, rec.Size)
		fs.live[ip] = lv
	}
	lv.Refs++

	if flags&OTrunc != 0 {
		file.TruncateToZero(fs.st, lv.RootBlk)
		lv.Size = 0
		rec.Size = 0
		rec.Mtime = now()
		fs.st.Itab.WriteRec(ip, rec)
	}

	fd := file.MkFd(fs.st, lv)
	fd.Flags = flags

	if flags&OSeekEnd != 0 {
		if err := fd.SetOffset(lv.Size); err != nil {
			panic("fs: seek to end failed")
		}
	}
	return fd, nil
}

// closeFd drops one reference to the handle's live record; the last
// close of a deleted file releases its inode and blocks.
func (fs *FS) closeFd(fd *file.Fd) {
	lv := fd.Live()
	if lv.Refs == 0 {
		panic("fs: close of closed file")
	}
	lv.Refs--
	if lv.Refs > 0 {
		return
	}
	delete(fs.live, lv.Ip)
	if lv.Deleted {
		dataBlk, _ := fs.st.Itab.MustFree(lv.Ip)
		file.Purge(fs.st, dataBlk)
		util.DPrintf(3, "fs: purged inode %d on last close\n", lv.Ip)
	}
}

// openDirInternal opens a short-lived cursor on a directory for one
// namespace operation. It shares live records with user handles so
// concurrent directory reads observe size changes.
func (fs *FS) openDirInternal(ip common.Inum) (*file.Fd, error) {
	return fs.openFd(ip, true, ORead|OWrite)
}
