package fs

import (
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/dir"
	"github.com/blkfs/blkfs/file"
	"github.com/blkfs/blkfs/fserr"
	"github.com/blkfs/blkfs/util"
)

func checkName(name string) error {
	if len(name) == 0 || len(name) > common.MAXNAMELEN {
		return fserr.NameTooLong
	}
	return nil
}

// syncDirInode persists a directory's size and mtime after a mutation
// through fd.
func (fs *FS) syncDirInode(fd *file.Fd) {
	lv := fd.Live()
	rec, ok := fs.st.Itab.ReadRec(lv.Ip)
	if !ok {
		panic("fs: directory inode vanished")
	}
	rec.Size = lv.Size
	rec.Mtime = now()
	fs.st.Itab.WriteRec(lv.Ip, rec)
}

// Lookup resolves name within the directory dirIp.
func (fs *FS) Lookup(dirIp common.Inum, name string) (common.Inum, error) {
	fd, err := fs.openDirInternal(dirIp)
	if err != nil {
		return 0, err
	}
	defer fs.closeFd(fd)

	ip, _, found := dir.Lookup(fd, name)
	if !found {
		return 0, fserr.NoEnt
	}
	return ip, nil
}

// Exists reports whether name is present in dirIp.
func (fs *FS) Exists(dirIp common.Inum, name string) (bool, error) {
	_, err := fs.Lookup(dirIp, name)
	if err == fserr.NoEnt {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// mkNode backs Create and Mkdir: reserve a slot in the parent, build
// the child's index + first data block, allocate its inode, and write
// the entry. Any failure unwinds the allocations already made.
func (fs *FS) mkNode(dirIp common.Inum, name string, isDir bool) (common.Inum, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	fd, err := fs.openDirInternal(dirIp)
	if err != nil {
		return 0, err
	}
	defer fs.closeFd(fd)

	_, _, found, insertOff := dir.Scan(fd, name)
	if found {
		return 0, fserr.Exists
	}

	rootBlk, err := file.CreateBlank(fs.st)
	if err != nil {
		return 0, err
	}
	ip, ok := fs.st.Itab.Alloc(isDir, rootBlk, now())
	if !ok {
		file.Purge(fs.st, rootBlk)
		return 0, fserr.NoFreeInodes
	}
	if err := dir.WriteAt(fd, insertOff, dir.Ent{Name: name, Ip: ip}); err != nil {
		fs.st.Itab.MustFree(ip)
		file.Purge(fs.st, rootBlk)
		return 0, err
	}
	fs.syncDirInode(fd)
	util.DPrintf(3, "fs: created %q -> inode %d\n", name, ip)
	return ip, nil
}

// Create makes an empty regular file in dirIp.
func (fs *FS) Create(dirIp common.Inum, name string) (common.Inum, error) {
	return fs.mkNode(dirIp, name, false)
}

// Mkdir makes an empty directory in dirIp.
func (fs *FS) Mkdir(dirIp common.Inum, name string) (common.Inum, error) {
	return fs.mkNode(dirIp, name, true)
}

// removeInode releases an inode and its storage now, or defers to the
// last close if handles are still open on it.
func (fs *FS) removeInode(ip common.Inum) {
	if lv, open := fs.live[ip]; open {
		lv.Deleted = true
		util.DPrintf(3, "fs: inode %d delete deferred, %d refs\n", ip, lv.Refs)
		return
	}
	dataBlk, _ := fs.st.Itab.MustFree(ip)
	file.Purge(fs.st, dataBlk)
}

// Unlink removes a regular file's entry from dirIp. An open file's
// storage survives until its last handle closes.
func (fs *FS) Unlink(dirIp common.Inum, name string) error {
	fd, err := fs.openDirInternal(dirIp)
	if err != nil {
		return err
	}
	defer fs.closeFd(fd)

	ip, entOff, found := dir.Lookup(fd, name)
	if !found {
		return fserr.NoEnt
	}
	rec, ok := fs.st.Itab.ReadRec(ip)
	if !ok {
		panic("fs: directory entry names an absent inode")
	}
	if rec.IsDir() {
		return fserr.IsDir
	}

	if err := dir.Erase(fd, entOff); err != nil {
		return err
	}
	fs.syncDirInode(fd)
	fs.removeInode(ip)
	return nil
}

// Rmdir removes an empty directory from dirIp.
func (fs *FS) Rmdir(dirIp common.Inum, name string) error {
	fd, err := fs.openDirInternal(dirIp)
	if err != nil {
		return err
	}
	defer fs.closeFd(fd)

	ip, entOff, found := dir.Lookup(fd, name)
	if !found {
		return fserr.NoEnt
	}
	rec, ok := fs.st.Itab.ReadRec(ip)
	if !ok {
		panic("fs: directory entry names an absent inode")
	}
	if !rec.IsDir() {
		return fserr.NotDir
	}

	child, err := fs.openFd(ip, true, ORead)
	if err != nil {
		return err
	}
	empty := dir.Empty(child)
	fs.closeFd(child)
	if !empty {
		return fserr.NotEmpty
	}

	if err := dir.Erase(fd, entOff); err != nil {
		return err
	}
	fs.syncDirInode(fd)
	fs.removeInode(ip)
	return nil
}

// OpenDir opens a directory for iteration. Directory handles live in
// their own map so file operations cannot be aimed at a directory.
func (fs *FS) OpenDir(ip common.Inum) (uint32, error) {
	fd, err := fs.openFd(ip, true, ORead)
	if err != nil {
		return 0, err
	}
	h := fs.nextHandle()
	fs.dirs[h] = fd
	return h, nil
}

// CloseDir releases a directory handle.
func (fs *FS) CloseDir(h uint32) error {
	fd, ok := fs.dirs[h]
	if !ok {
		return fserr.InvalidFileHandle
	}
	delete(fs.dirs, h)
	fs.closeFd(fd)
	return nil
}

// ReadDir returns the next live entry's stat, with ok=false at end of
// iteration.
func (fs *FS) ReadDir(h uint32) (Stat, bool, error) {
	fd, ok := fs.dirs[h]
	if !ok {
		return Stat{}, false, fserr.InvalidFileHandle
	}
	e, ok := dir.NextLive(fd)
	if !ok {
		return Stat{}, false, nil
	}
	rec, present := fs.st.Itab.ReadRec(e.Ip)
	if !present {
		panic("fs: directory entry names an absent inode")
	}
	st := mkStat(e.Ip, rec)
	st.Name = e.Name
	return st, true, nil
}
