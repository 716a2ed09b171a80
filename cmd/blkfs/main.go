// Command blkfs formats and inspects filesystem images.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "blkfs",
		Usage: "format and explore block-filesystem images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Usage:   "backing image file (omit for an in-memory disk)",
				EnvVars: []string{"BLKFS_IMAGE"},
			},
			&cli.Uint64Flag{
				Name:    "block-size",
				Value:   512,
				Usage:   "device block size in bytes (power of two)",
				EnvVars: []string{"BLKFS_BLOCK_SIZE"},
			},
			&cli.Uint64Flag{
				Name:    "blocks",
				Value:   4096,
				Usage:   "device size in blocks",
				EnvVars: []string{"BLKFS_BLOCKS"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "write a fresh filesystem onto the device",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  "inode-blocks",
						Value: 8,
						Usage: "blocks reserved for inodes (multiple of 8)",
					},
				},
				Action: cmdFormat,
			},
			{
				Name:   "shell",
				Usage:  "interactive session on a formatted device",
				Action: cmdShell,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
