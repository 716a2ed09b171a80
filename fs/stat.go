package fs

import (
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fserr"
	"github.com/blkfs/blkfs/inode"
)

// Kind distinguishes stat results.
type Kind uint8

const (
	KindFile Kind = 1
	KindDir  Kind = 2
)

// Stat is the caller-visible shape of an inode. Name is set only by
// ReadDir.
type Stat struct {
	Name  string
	Ip    common.Inum
	Kind  Kind
	Exec  bool
	Mtime uint32
	Size  uint32
}

func mkStat(ip common.Inum, rec inode.Rec) Stat {
	kind := KindFile
	if rec.IsDir() {
		kind = KindDir
	}
	return Stat{
		Ip:    ip,
		Kind:  kind,
		Exec:  rec.IsExec(),
		Mtime: rec.Mtime,
		Size:  rec.Size,
	}
}

// Stat reads the inode behind ip.
func (fs *FS) Stat(ip common.Inum) (Stat, error) {
	rec, ok := fs.st.Itab.ReadRec(ip)
	if !ok {
		return Stat{}, fserr.NoEnt
	}
	return mkStat(ip, rec), nil
}

// SetExecutable sets (on) or clears (off) the executable bit on a
// regular file or directory.
func (fs *FS) SetExecutable(ip common.Inum, on bool) error {
	rec, ok := fs.st.Itab.ReadRec(ip)
	if !ok {
		return fserr.NoEnt
	}
	if on {
		rec.Flags |= common.FlagExec
	} else {
		rec.Flags &^= common.FlagExec
	}
	fs.st.Itab.WriteRec(ip, rec)
	return nil
}
