// Package inode manages the fixed-size table of 16-byte inode records
// stored in a contiguous block range.
//
// A record with zero flags is a free slot. Free slots are kept on a
// stack that hands out the lowest index first after create or load;
// freed slots are reused most-recently-freed first. Every mutation
// persists the containing block before returning.
package inode

import (
	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/blkpool"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/util"
)

// Rec is a decoded inode record.
type Rec struct {
	Flags   uint16
	DataBlk common.Bnum // root index block
	MetaBlk common.Bnum // reserved, always 0
	Mtime   uint32
	Size    uint32
}

func (r Rec) IsDir() bool {
	return r.Flags&common.FlagDir != 0
}

func (r Rec) IsFile() bool {
	return r.Flags&common.FlagFile != 0
}

func (r Rec) IsExec() bool {
	return r.Flags&common.FlagExec != 0
}

type Table struct {
	d      blkdev.Device
	pool   *blkpool.Pool
	start  common.Bnum
	nInode uint64
	perBlk uint64
	free   []common.Inum
}

func mkTable(d blkdev.Device, pool *blkpool.Pool, start common.Bnum, nblocks uint64) *Table {
	perBlk := d.BlockSize() / common.INODESZ
	nInode := util.Min(nblocks*perBlk, common.NINODEMAX)
	return &Table{
		d:      d,
		pool:   pool,
		start:  start,
		nInode: nInode,
		perBlk: perBlk,
	}
}

// CreateTable zeroes the inode region and returns a table with every
// slot free.
func CreateTable(d blkdev.Device, pool *blkpool.Pool, start common.Bnum, nblocks uint64) *Table {
	t := mkTable(d, pool, start, nblocks)
	for i := uint64(0); i < nblocks; i++ {
		d.ZeroBlock(start + common.Bnum(i))
	}
	for ip := t.nInode; ip > 0; ip-- {
		t.free = append(t.free, common.Inum(ip-1))
	}
	return t
}

// LoadTable reads an existing inode region. Slots are scanned in
// reverse so the free stack pops the lowest index next.
func LoadTable(d blkdev.Device, pool *blkpool.Pool, start common.Bnum, nblocks uint64) *Table {
	t := mkTable(d, pool, start, nblocks)
	buf := pool.Take()
	defer pool.Give(buf)

	for ip := t.nInode; ip > 0; ip-- {
		t.readBlockOf(common.Inum(ip-1), buf)
		r := decodeRec(t.recBytes(common.Inum(ip-1), buf))
		if r.Flags == 0 {
			t.free = append(t.free, common.Inum(ip-1))
		}
	}
	return t
}

// NInode reports the table capacity.
func (t *Table) NInode() uint64 {
	return t.nInode
}

// NumFree reports how many slots are unallocated.
func (t *Table) NumFree() uint64 {
	return uint64(len(t.free))
}

func (t *Table) blockOf(ip common.Inum) common.Bnum {
	return t.start + common.Bnum(uint64(ip)/t.perBlk)
}

func (t *Table) recBytes(ip common.Inum, blk []byte) []byte {
	off := (uint64(ip) % t.perBlk) * common.INODESZ
	return blk[off : off+common.INODESZ]
}

func (t *Table) readBlockOf(ip common.Inum, buf []byte) {
	err := t.d.ReadBlock(buf, t.blockOf(ip))
	if err != nil {
		panic("inode: table read failed: " + err.Error())
	}
}

// Alloc pops the top of the free-slot stack and writes a fresh record
// to it: the lowest free slot on a freshly created or loaded table,
// otherwise the most recently freed one. ok is false if the table is
// full.
func (t *Table) Alloc(isDir bool, dataBlk common.Bnum, mtime uint32) (common.Inum, bool) {
	n := len(t.free)
	if n == 0 {
		return 0, false
	}
	ip := t.free[n-1]
	t.free = t.free[:n-1]

	flags := common.FlagFile
	if isDir {
		flags = common.FlagDir
	}
	t.WriteRec(ip, Rec{
		Flags:   flags,
		DataBlk: dataBlk,
		Mtime:   mtime,
	})
	util.DPrintf(5, "inode: alloc %d\n", ip)
	return ip, true
}

// ReadRec decodes slot ip. ok is false for a free or out-of-range slot.
func (t *Table) ReadRec(ip common.Inum) (Rec, bool) {
	if uint64(ip) >= t.nInode {
		return Rec{}, false
	}
	buf := t.pool.Take()
	defer t.pool.Give(buf)
	t.readBlockOf(ip, buf)
	r := decodeRec(t.recBytes(ip, buf))
	if r.Flags == 0 {
		return Rec{}, false
	}
	return r, true
}

// WriteRec encodes r into slot ip and persists the containing block.
func (t *Table) WriteRec(ip common.Inum, r Rec) {
	if uint64(ip) >= t.nInode {
		panic("inode: write out of range")
	}
	buf := t.pool.Take()
	defer t.pool.Give(buf)
	t.readBlockOf(ip, buf)
	encodeRec(r, t.recBytes(ip, buf))
	t.d.WriteBlock(t.blockOf(ip), buf)
}

// MustFree zeroes slot ip and returns the block pointers it held so
// the caller can reclaim the referenced storage. Freeing a free slot
// is a programming error.
func (t *Table) MustFree(ip common.Inum) (common.Bnum, common.Bnum) {
	r, ok := t.ReadRec(ip)
	if !ok {
		panic("inode: free of absent inode")
	}
	buf := t.pool.Take()
	defer t.pool.Give(buf)
	t.readBlockOf(ip, buf)
	rb := t.recBytes(ip, buf)
	for i := range rb {
		rb[i] = 0
	}
	t.d.WriteBlock(t.blockOf(ip), buf)
	t.free = append(t.free, ip)
	util.DPrintf(5, "inode: free %d\n", ip)
	return r.DataBlk, r.MetaBlk
}
