package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/multiformats/go-multibase"
	"github.com/urfave/cli/v2"
)

func newCmd_Stat() *cli.Command {
	return &cli.Command{
		Name:  "stat",
		Usage: "Print a caskade's origin, state, storage size, and checkpoint history.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			c, err := openReadOnly(cctx.String("dir"))
			if err != nil {
				return err
			}
			size, err := c.StorageSize()
			if err != nil {
				return err
			}
			// Multibase gives operators a second, self-describing encoding of
			// the origin alongside the hex form ids.Rake.String() already
			// prints, the way a CIDv1 multibase prefix disambiguates encodings
			// without committing caskade's own wire format to IPFS's CID
			// framing (SPEC_FULL.md §3).
			mb, err := multibase.Encode(multibase.Base32, c.Origin().Bytes())
			if err != nil {
				return err
			}

			fmt.Printf("dir:             %s\n", c.Dir())
			fmt.Printf("origin:          %s\n", c.Origin().String())
			fmt.Printf("origin (mbase):  %s\n", mb)
			fmt.Printf("state:           %s\n", c.State())
			fmt.Printf("storage size:    %s (%d bytes)\n", humanize.Bytes(size), size)
			fmt.Printf("index size:      %s\n", humanize.Bytes(c.IndexStorageSize()))

			cps := c.Checkpoints()
			fmt.Printf("checkpoints:     %d\n", len(cps))
			for _, cp := range cps {
				tag := ""
				if cp.Virtual {
					tag = " (virtual)"
				}
				fmt.Printf("  cask=%s [%d,%d) %-18s %s%s\n", cp.CaskId.String(), cp.Start, cp.End, cp.Type, cp.CheckpointId, tag)
			}
			return nil
		},
	}
}
