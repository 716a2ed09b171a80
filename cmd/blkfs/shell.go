package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/blkfs/blkfs/blkdev"
	"github.com/blkfs/blkfs/common"
	"github.com/blkfs/blkfs/fs"
)

// openDevice builds the device the global flags describe. The config
// header lives in block 0, which the core reserves for the caller.
func openDevice(c *cli.Context) (blkdev.Device, error) {
	bsz := c.Uint64("block-size")
	nblocks := c.Uint64("blocks")
	if path := c.String("image"); path != "" {
		return blkdev.NewFileDisk(path, bsz, nblocks)
	}
	return blkdev.NewMemDisk(bsz, nblocks), nil
}

func storeConfig(dev blkdev.Device, cfg [common.CONFIGSZ]byte) {
	blk := make([]byte, dev.BlockSize())
	copy(blk, cfg[:])
	dev.WriteBlock(0, blk)
}

func loadConfig(dev blkdev.Device) ([common.CONFIGSZ]byte, error) {
	var cfg [common.CONFIGSZ]byte
	blk := make([]byte, dev.BlockSize())
	if err := dev.ReadBlock(blk, 0); err != nil {
		return cfg, err
	}
	copy(cfg[:], blk)
	return cfg, nil
}

func cmdFormat(c *cli.Context) error {
	dev, err := openDevice(c)
	if err != nil {
		return err
	}
	cfg, err := fs.Format(dev, c.Uint64("inode-blocks"))
	if err != nil {
		return err
	}
	storeConfig(dev, cfg)
	fmt.Printf("formatted: %d blocks of %d bytes, %d inode blocks\n",
		dev.NumBlocks(), dev.BlockSize(), c.Uint64("inode-blocks"))
	return nil
}

// dirFrame tracks the shell's position so "cd .." can walk back out.
type dirFrame struct {
	name string
	ip   common.Inum
}

func cmdShell(c *cli.Context) error {
	dev, err := openDevice(c)
	if err != nil {
		return err
	}
	if c.String("image") == "" {
		// nothing to mount on a blank memory disk; format it first
		cfg, err := fs.Format(dev, 8)
		if err != nil {
			return err
		}
		storeConfig(dev, cfg)
	}
	cfg, err := loadConfig(dev)
	if err != nil {
		return err
	}
	m, err := fs.Init(dev, cfg)
	if err != nil {
		return err
	}
	defer m.Deinit()

	path := []dirFrame{{name: "", ip: common.ROOTINUM}}
	sc := bufio.NewScanner(os.Stdin)
	for {
		cwd := path[len(path)-1]
		fmt.Printf("blkfs:/%s> ", joinPath(path))
		if !sc.Scan() {
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := runShellCmd(m, cwd.ip, &path, cmd, args); err != nil {
			fmt.Printf("%s: %v\n", cmd, err)
		}
	}
}

func joinPath(path []dirFrame) string {
	parts := make([]string, 0, len(path)-1)
	for _, f := range path[1:] {
		parts = append(parts, f.name)
	}
	return strings.Join(parts, "/")
}

func runShellCmd(m *fs.FS, cwd common.Inum, path *[]dirFrame, cmd string, args []string) error {
	switch cmd {
	case "ls":
		h, err := m.OpenDir(cwd)
		if err != nil {
			return err
		}
		defer m.CloseDir(h)
		for {
			st, ok, err := m.ReadDir(h)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			kind := "f"
			if st.Kind == fs.KindDir {
				kind = "d"
			}
			fmt.Printf("%s %6d %10d %s\n", kind, st.Ip, st.Size, st.Name)
		}
	case "cd":
		if len(args) != 1 {
			return fmt.Errorf("usage: cd <name|..>")
		}
		if args[0] == ".." {
			if len(*path) > 1 {
				*path = (*path)[:len(*path)-1]
			}
			return nil
		}
		ip, err := m.Lookup(cwd, args[0])
		if err != nil {
			return err
		}
		st, err := m.Stat(ip)
		if err != nil {
			return err
		}
		if st.Kind != fs.KindDir {
			return fmt.Errorf("%s: not a directory", args[0])
		}
		*path = append(*path, dirFrame{name: args[0], ip: ip})
		return nil
	case "mkdir", "create":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <name>", cmd)
		}
		var err error
		if cmd == "mkdir" {
			_, err = m.Mkdir(cwd, args[0])
		} else {
			_, err = m.Create(cwd, args[0])
		}
		return err
	case "rmdir":
		if len(args) != 1 {
			return fmt.Errorf("usage: rmdir <name>")
		}
		return m.Rmdir(cwd, args[0])
	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: rm <name>")
		}
		return m.Unlink(cwd, args[0])
	case "put":
		if len(args) < 2 {
			return fmt.Errorf("usage: put <name> <text...>")
		}
		data := strings.Join(args[1:], " ")
		ip, err := m.Lookup(cwd, args[0])
		if err == nil {
			// overwrite
		} else if ip, err = m.Create(cwd, args[0]); err != nil {
			return err
		}
		h, err := m.Open(ip, fs.OWrite|fs.OTrunc)
		if err != nil {
			return err
		}
		defer m.Close(h)
		_, err = m.Write(h, []byte(data))
		return err
	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("usage: cat <name>")
		}
		ip, err := m.Lookup(cwd, args[0])
		if err != nil {
			return err
		}
		h, err := m.Open(ip, fs.ORead)
		if err != nil {
			return err
		}
		defer m.Close(h)
		buf := make([]byte, 4096)
		for {
			n, eof, err := m.Read(h, buf)
			if err != nil {
				return err
			}
			os.Stdout.Write(buf[:n])
			if eof || n == 0 {
				fmt.Println()
				return nil
			}
		}
	case "stat":
		if len(args) != 1 {
			return fmt.Errorf("usage: stat <name>")
		}
		ip, err := m.Lookup(cwd, args[0])
		if err != nil {
			return err
		}
		st, err := m.Stat(ip)
		if err != nil {
			return err
		}
		fmt.Printf("inode %d kind %d exec %v mtime %d size %d\n",
			st.Ip, st.Kind, st.Exec, st.Mtime, st.Size)
		return nil
	case "free":
		fmt.Printf("%d blocks free\n", m.FreeBlockCount())
		return nil
	case "help":
		fmt.Println("commands: ls cd mkdir rmdir create put cat rm stat free quit")
		return nil
	default:
		return fmt.Errorf("unknown command (try help)")
	}
}
