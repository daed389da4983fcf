// Command mkfs lays out a fresh filesystem inside an already-sized image
// file, the standalone counterpart to the original implementation's
// mkfs.c: same -d/-i/-b flags, same rounding-up-to-32 behavior, now
// delegated to the format package instead of duplicating the layout math
// in the command itself.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cs537-wisc/wfs/format"
)

func main() {
	app := &cli.App{
		Name:  "mkfs",
		Usage: "format an image file as a single-image filesystem",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "d", Usage: "path to the disk image", Required: true},
			&cli.IntFlag{Name: "i", Usage: "number of inodes", Required: true},
			&cli.IntFlag{Name: "b", Usage: "number of data blocks", Required: true},
		},
		Action: runMkfs,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mkfs: %s", err.Error())
	}
}

func runMkfs(c *cli.Context) error {
	diskImage := c.String("d")
	numInodes := c.Int("i")
	numDataBlocks := c.Int("b")

	if numInodes <= 0 || numDataBlocks <= 0 {
		return fmt.Errorf("-i and -b must both be positive")
	}

	return format.Format(diskImage, uint64(numInodes), uint64(numDataBlocks))
}
