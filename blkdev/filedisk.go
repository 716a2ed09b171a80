package blkdev

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/blkfs/blkfs/common"
)

var _ Device = (*FileDisk)(nil)

// FileDisk is a device backed by a regular file.
type FileDisk struct {
	devCore
	fd        int
	blockSize uint64
	numBlocks uint64
	zero      []byte
}

func NewFileDisk(path string, blockSize uint64, numBlocks uint64) (*FileDisk, error) {
	checkGeometry(blockSize, numBlocks)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if (stat.Mode&unix.S_IFREG) != 0 && uint64(stat.Size) != blockSize*numBlocks {
		err = unix.Ftruncate(fd, int64(blockSize*numBlocks))
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &FileDisk{
		devCore:   devCore{id: mkDevID()},
		fd:        fd,
		blockSize: blockSize,
		numBlocks: numBlocks,
		zero:      make([]byte, blockSize),
	}, nil
}

func (d *FileDisk) BlockSize() uint64 {
	return d.blockSize
}

func (d *FileDisk) NumBlocks() uint64 {
	return d.numBlocks
}

func (d *FileDisk) checkAccess(buf []byte, bn common.Bnum) {
	if uint64(len(buf)) != d.blockSize {
		panic(fmt.Errorf("buffer is not block-sized (%d bytes)", len(buf)))
	}
	if uint64(bn) >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds access at %v", bn))
	}
}

func (d *FileDisk) ReadBlock(dst []byte, bn common.Bnum) error {
	d.checkAccess(dst, bn)
	_, err := unix.Pread(d.fd, dst, int64(uint64(bn)*d.blockSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
	return nil
}

func (d *FileDisk) WriteBlock(bn common.Bnum, src []byte) {
	d.checkAccess(src, bn)
	_, err := unix.Pwrite(d.fd, src, int64(uint64(bn)*d.blockSize))
	if err != nil {
		panic("write failed: " + err.Error())
	}
	d.notifyWrite(bn)
}

func (d *FileDisk) ZeroBlock(bn common.Bnum) {
	d.WriteBlock(bn, d.zero)
}

// Close releases the backing file descriptor. The device must not be
// claimed by a filesystem when closed.
func (d *FileDisk) Close() error {
	if d.claimed {
		panic("blkdev: close of claimed device")
	}
	return unix.Close(d.fd)
}
