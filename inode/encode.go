package inode

import (
	"encoding/binary"

	"github.com/blkfs/blkfs/common"
)

// On-disk record layout, big-endian:
//
//	u16 flags | u16 reserved | u16 data_blk | u16 meta_blk
//	u32 mtime | u32 size

func encodeRec(r Rec, dst []byte) {
	_ = dst[common.INODESZ-1]
	binary.BigEndian.PutUint16(dst[0:2], r.Flags)
	binary.BigEndian.PutUint16(dst[2:4], 0)
	binary.BigEndian.PutUint16(dst[4:6], r.DataBlk)
	binary.BigEndian.PutUint16(dst[6:8], r.MetaBlk)
	binary.BigEndian.PutUint32(dst[8:12], r.Mtime)
	binary.BigEndian.PutUint32(dst[12:16], r.Size)
}

func decodeRec(src []byte) Rec {
	_ = src[common.INODESZ-1]
	return Rec{
		Flags:   binary.BigEndian.Uint16(src[0:2]),
		DataBlk: binary.BigEndian.Uint16(src[4:6]),
		MetaBlk: binary.BigEndian.Uint16(src[6:8]),
		Mtime:   binary.BigEndian.Uint32(src[8:12]),
		Size:    binary.BigEndian.Uint32(src[12:16]),
	}
}
