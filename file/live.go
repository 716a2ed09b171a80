package file

import (
	"github.com/blkfs/blkfs/common"
)

// Live is the per-inode record shared by every open handle of that
// inode. While Refs > 0 the inode slot must not be reused; Size here
// is authoritative over the inode's while the file is open.
type Live struct {
	Ip      common.Inum
	RootBlk common.Bnum
	Size    uint32
	Deleted bool
	Refs    uint64
}

func MkLive(ip common.Inum, rootBlk common.Bnum, size uint32) *Live {
	return &Live{
		Ip:      ip,
		RootBlk: rootBlk,
		Size:    size,
	}
}
