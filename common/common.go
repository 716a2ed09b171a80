package common

// Bnum is an on-disk block pointer. 0 means "no block"; block 0 holds
// the device geometry and is never handed out by the allocator.
type Bnum = uint16

// Inum is an index into the inode table.
type Inum = uint16

const (
	NULLBNUM Bnum = 0
	ROOTINUM Inum = 0

	// INODESZ is the on-disk size of an inode record.
	INODESZ uint64 = 16

	// DIRENTSZ is the on-disk size of a directory entry:
	// 14 bytes of name plus a 2-byte inode pointer.
	DIRENTSZ uint64 = 16

	// MAXNAMELEN is the longest directory entry name.
	MAXNAMELEN = 14

	// NINODEMAX caps the inode table regardless of region size, since
	// inode pointers are 16 bits.
	NINODEMAX uint64 = 65536

	// CONFIGSZ is the size of the header produced by format.
	CONFIGSZ = 16
)

// Inode flag bits.
const (
	FlagDir  uint16 = 1 << 0
	FlagFile uint16 = 1 << 1
	FlagExec uint16 = 1 << 15
)
