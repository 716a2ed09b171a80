// Package bridge maps filesystem operations onto integer return codes
// for host environments that cannot pass Go values. Bulk data crosses
// through a shuttle buffer and names through a separate string buffer;
// results are non-negative, failures are negated fserr codes.
package bridge

import (
	"encoding/binary"

	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fs"
	"github.com/blkfs/blkfs/fserr"
	"github.com/blkfs/blkfs/util"
)

// StatWireSz is the serialized stat record: 14-byte name + NUL,
// u32 inode, u8 type, u8 executable, u32 mtime, u32 size.
const StatWireSz = 29

type Bridge struct {
	mounts map[uint32]*fs.FS
	nextID uint32

	// Shuttle carries bulk read/write payloads and serialized stat
	// records.
	Shuttle []byte

	// StrBuf carries NUL-terminated names.
	StrBuf []byte
}

func MkBridge(shuttleSz int, strBufSz int) *Bridge {
	return &Bridge{
		mounts:  make(map[uint32]*fs.FS),
		Shuttle: make([]byte, shuttleSz),
		StrBuf:  make([]byte, strBufSz),
	}
}

// run executes op, converting typed errors to negated codes and
// structural panics to FatalInternalError.
func run(op func() (int32, error)) (ret int32) {
	defer func() {
		if r := recover(); r != nil {
			util.DPrintf(0, "bridge: fatal: %v\n", r)
			ret = -fserr.FatalInternalError.Code()
		}
	}()
	v, err := op()
	if err != nil {
		if e, ok := err.(fserr.Errno); ok {
			return -e.Code()
		}
		return -fserr.FatalInternalError.Code()
	}
	return v
}

// name decodes the string buffer up to its first NUL.
func (b *Bridge) name() string {
	n := 0
	for n < len(b.StrBuf) && b.StrBuf[n] != 0 {
		n++
	}
	return string(b.StrBuf[:n])
}

func (b *Bridge) mount(id uint32) (*fs.FS, error) {
	m, ok := b.mounts[id]
	if !ok {
		return nil, fserr.InvalidFSParams
	}
	return m, nil
}

// Format writes a filesystem onto dev and leaves the 16-byte config
// header at the start of the shuttle.
func (b *Bridge) Format(dev blkdev.Device, inodeBlocks uint64) int32 {
	return run(func() (int32, error) {
		cfg, err := fs.Format(dev, inodeBlocks)
		if err != nil {
			return 0, err
		}
		copy(b.Shuttle, cfg[:])
		return common.CONFIGSZ, nil
	})
}

// Init mounts dev using the config header at the start of the shuttle
// and returns a filesystem id.
func (b *Bridge) Init(dev blkdev.Device) int32 {
	return run(func() (int32, error) {
		var cfg [common.CONFIGSZ]byte
		copy(cfg[:], b.Shuttle)
		m, err := fs.Init(dev, cfg)
		if err != nil {
			return 0, err
		}
		b.nextID++
		b.mounts[b.nextID] = m
		return int32(b.nextID), nil
	})
}

// Destroy unmounts a filesystem id.
func (b *Bridge) Destroy(id uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		m.Deinit()
		delete(b.mounts, id)
		return 0, nil
	})
}

func encodeStat(st fs.Stat, dst []byte) {
	_ = dst[StatWireSz-1]
	for i := 0; i < 15; i++ {
		dst[i] = 0
	}
	copy(dst[:common.MAXNAMELEN], st.Name)
	binary.BigEndian.PutUint32(dst[15:19], uint32(st.Ip))
	dst[19] = byte(st.Kind)
	dst[20] = 0
	if st.Exec {
		dst[20] = 1
	}
	binary.BigEndian.PutUint32(dst[21:25], st.Mtime)
	binary.BigEndian.PutUint32(dst[25:29], st.Size)
}

// Stat serializes ip's stat record into the shuttle.
func (b *Bridge) Stat(id uint32, ip common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		st, err := m.Stat(ip)
		if err != nil {
			return 0, err
		}
		encodeStat(st, b.Shuttle)
		return StatWireSz, nil
	})
}

// Lookup resolves the name in the string buffer under dirIp.
func (b *Bridge) Lookup(id uint32, dirIp common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		ip, err := m.Lookup(dirIp, b.name())
		if err != nil {
			return 0, err
		}
		return int32(ip), nil
	})
}

// Exists reports 1 or 0 for the name in the string buffer.
func (b *Bridge) Exists(id uint32, dirIp common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		ok, err := m.Exists(dirIp, b.name())
		if err != nil {
			return 0, err
		}
		if ok {
			return 1, nil
		}
		return 0, nil
	})
}

// Create makes a file named by the string buffer and returns its inode.
func (b *Bridge) Create(id uint32, dirIp common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		ip, err := m.Create(dirIp, b.name())
		return int32(ip), err
	})
}

// Mkdir makes a directory named by the string buffer.
func (b *Bridge) Mkdir(id uint32, dirIp common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		ip, err := m.Mkdir(dirIp, b.name())
		return int32(ip), err
	})
}

// Unlink removes the file named by the string buffer.
func (b *Bridge) Unlink(id uint32, dirIp common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		return 0, m.Unlink(dirIp, b.name())
	})
}

// Rmdir removes the directory named by the string buffer.
func (b *Bridge) Rmdir(id uint32, dirIp common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		return 0, m.Rmdir(dirIp, b.name())
	})
}

// Open opens a file and returns its handle.
func (b *Bridge) Open(id uint32, ip common.Inum, flags uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		h, err := m.Open(ip, flags)
		return int32(h), err
	})
}

// Close releases a file handle.
func (b *Bridge) Close(id uint32, h uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		return 0, m.Close(h)
	})
}

// Read moves up to count bytes into the shuttle and returns how many
// arrived. End-of-file is observed via Eof.
func (b *Bridge) Read(id uint32, h uint32, count uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		if count > uint32(len(b.Shuttle)) {
			count = uint32(len(b.Shuttle))
		}
		n, _, err := m.Read(h, b.Shuttle[:count])
		return int32(n), err
	})
}

// Write moves count bytes from the shuttle into the file.
func (b *Bridge) Write(id uint32, h uint32, count uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		if count > uint32(len(b.Shuttle)) {
			return 0, fserr.InvalidOffset
		}
		n, err := m.Write(h, b.Shuttle[:count])
		return int32(n), err
	})
}

// Seek repositions a handle.
func (b *Bridge) Seek(id uint32, h uint32, offset int64, whence uint8) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		return 0, m.Seek(h, offset, fs.Whence(whence))
	})
}

// Tell reports a handle's offset.
func (b *Bridge) Tell(id uint32, h uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		off, err := m.Tell(h)
		return int32(off), err
	})
}

// Eof reports 1 when a handle sits at end of file.
func (b *Bridge) Eof(id uint32, h uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		eof, err := m.Eof(h)
		if err != nil {
			return 0, err
		}
		if eof {
			return 1, nil
		}
		return 0, nil
	})
}

// OpenDir opens a directory handle.
func (b *Bridge) OpenDir(id uint32, ip common.Inum) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		h, err := m.OpenDir(ip)
		return int32(h), err
	})
}

// CloseDir releases a directory handle.
func (b *Bridge) CloseDir(id uint32, h uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		return 0, m.CloseDir(h)
	})
}

// ReadDir serializes the next entry's stat into the shuttle,
// returning its size, or 0 at end of iteration.
func (b *Bridge) ReadDir(id uint32, h uint32) int32 {
	return run(func() (int32, error) {
		m, err := b.mount(id)
		if err != nil {
			return 0, err
		}
		st, ok, err := m.ReadDir(h)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		encodeStat(st, b.Shuttle)
		return StatWireSz, nil
	})
}
