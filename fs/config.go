package fs

import (
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fserr"
)

// Config header layout: filesystem-type magic, format version, then
// the inode region size in units of 8 blocks minus one. The remaining
// 13 bytes are reserved zero.
const (
	configMagic   = 1
	configVersion = 1
)

func encodeConfig(inodeBlocks uint64) [common.CONFIGSZ]byte {
	var cfg [common.CONFIGSZ]byte
	cfg[0] = configMagic
	cfg[1] = configVersion
	cfg[2] = byte(inodeBlocks/8 - 1)
	return cfg
}

func decodeConfig(cfg [common.CONFIGSZ]byte) (uint64, error) {
	if cfg[0] != configMagic || cfg[1] != configVersion {
		return 0, fserr.InvalidFSParams
	}
	for _, b := range cfg[3:] {
		if b != 0 {
			return 0, fserr.InvalidFSParams
		}
	}
	return (uint64(cfg[2]) + 1) * 8, nil
}
