// Package blkdev provides access to fixed-geometry block devices.
package blkdev

import (
	"errors"

	"github.com/blkfs/blkfs/common"
)

// ErrNotReady reports that a block's backing store is not loaded yet.
// The filesystem engine treats this as fatal; callers that can retry
// must do so before handing the device to a filesystem.
var ErrNotReady = errors.New("block not ready")

// NotifyFn observes every block write and zero on a device.
type NotifyFn func(dev uint32, bn common.Bnum)

// Device is a block-addressable byte store.
//
// Block size is a power of two. Reads and writes are whole-block only;
// buffers passed in must be exactly one block long.
type Device interface {
	// BlockSize reports the block length in bytes.
	BlockSize() uint64

	// NumBlocks reports how big the device is, in blocks.
	NumBlocks() uint64

	// ReadBlock reads block bn into dst.
	//
	// May fail with ErrNotReady if the backing store is lazy.
	ReadBlock(dst []byte, bn common.Bnum) error

	// WriteBlock replaces block bn with src.
	WriteBlock(bn common.Bnum, src []byte)

	// ZeroBlock fills block bn with zero bytes.
	ZeroBlock(bn common.Bnum)

	// Claim binds the device to one filesystem instance. It reports
	// false if the device is already claimed.
	Claim() bool

	// Release undoes Claim.
	Release()

	// SetNotify installs a change-notification hook, or removes it
	// when fn is nil.
	SetNotify(fn NotifyFn)
}

var nextDevID uint32

func mkDevID() uint32 {
	nextDevID++
	return nextDevID
}

// devCore carries the state shared by all device implementations.
type devCore struct {
	id      uint32
	claimed bool
	notify  NotifyFn
}

func (d *devCore) Claim() bool {
	if d.claimed {
		return false
	}
	d.claimed = true
	return true
}

func (d *devCore) Release() {
	if !d.claimed {
		panic("blkdev: release of unclaimed device")
	}
	d.claimed = false
}

func (d *devCore) SetNotify(fn NotifyFn) {
	d.notify = fn
}

func (d *devCore) notifyWrite(bn common.Bnum) {
	if d.notify != nil {
		d.notify(d.id, bn)
	}
}

func checkGeometry(blockSize uint64, numBlocks uint64) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		panic("blkdev: block size must be a power of two")
	}
	if numBlocks == 0 {
		panic("blkdev: device must have at least one block")
	}
}
