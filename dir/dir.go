// Package dir interprets a file's bytes as a packed array of 16-byte
// directory entries: 14 bytes of zero-padded name plus a big-endian
// inode pointer. An entry whose first name byte is zero is a
// tombstone; inserts reuse the first tombstone before growing the
// directory.
package dir

import (
	"encoding/binary"

	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/file"
)

// Ent is a decoded directory entry. An empty name marks a tombstone.
type Ent struct {
	Name string
	Ip   common.Inum
}

func encodeEnt(e Ent, dst []byte) {
	_ = dst[common.DIRENTSZ-1]
	for i := 0; i < common.MAXNAMELEN; i++ {
		dst[i] = 0
	}
	copy(dst[:common.MAXNAMELEN], e.Name)
	binary.BigEndian.PutUint16(dst[14:16], e.Ip)
}

func decodeEnt(src []byte) Ent {
	_ = src[common.DIRENTSZ-1]
	n := 0
	for n < common.MAXNAMELEN && src[n] != 0 {
		n++
	}
	return Ent{
		Name: string(src[:n]),
		Ip:   binary.BigEndian.Uint16(src[14:16]),
	}
}

// Next reads the entry at the cursor, tombstones included. ok is
// false at end of directory.
func Next(fd *file.Fd) (Ent, bool) {
	var raw [common.DIRENTSZ]byte
	n, _, err := fd.Read(raw[:])
	if err != nil {
		panic("dir: entry read failed: " + err.Error())
	}
	if n == 0 {
		return Ent{}, false
	}
	if n != common.DIRENTSZ {
		panic("dir: truncated directory entry")
	}
	return decodeEnt(raw[:]), true
}

// NextLive reads forward to the next non-tombstone entry.
func NextLive(fd *file.Fd) (Ent, bool) {
	for {
		e, ok := Next(fd)
		if !ok {
			return Ent{}, false
		}
		if e.Name != "" {
			return e, true
		}
	}
}

// Lookup scans the directory from the start for name. It returns the
// entry's inode and the byte offset of its slot.
func Lookup(fd *file.Fd, name string) (common.Inum, uint32, bool) {
	ip, entOff, found, _ := Scan(fd, name)
	return ip, entOff, found
}

// Scan is Lookup plus insert-slot tracking: insertOff is the first
// tombstone slot, or end-of-directory if there is none.
func Scan(fd *file.Fd, name string) (ip common.Inum, entOff uint32, found bool, insertOff uint32) {
	if err := fd.SetOffset(0); err != nil {
		panic("dir: rewind failed")
	}
	haveSlot := false
	for {
		off := fd.Tell()
		e, ok := Next(fd)
		if !ok {
			break
		}
		if e.Name == "" {
			if !haveSlot {
				haveSlot = true
				insertOff = off
			}
			continue
		}
		if e.Name == name {
			return e.Ip, off, true, 0
		}
	}
	if !haveSlot {
		insertOff = fd.Size()
	}
	return 0, 0, false, insertOff
}

// WriteAt stores e in the slot at byte offset off, which must lie
// within the directory or exactly at its end.
func WriteAt(fd *file.Fd, off uint32, e Ent) error {
	var raw [common.DIRENTSZ]byte
	encodeEnt(e, raw[:])
	if err := fd.SetOffset(off); err != nil {
		return err
	}
	_, err := fd.Write(raw[:])
	return err
}

// Erase tombstones the slot at byte offset off.
func Erase(fd *file.Fd, off uint32) error {
	return WriteAt(fd, off, Ent{})
}

// Empty reports whether the directory has no live entries.
func Empty(fd *file.Fd) bool {
	if err := fd.SetOffset(0); err != nil {
		panic("dir: rewind failed")
	}
	_, ok := NextLive(fd)
	return !ok
}
