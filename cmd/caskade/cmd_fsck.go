package main

import (
	"fmt"

	"github.com/rpcpool/caskade/caskade"
	"github.com/rpcpool/caskade/ids"
	"github.com/urfave/cli/v2"
)

func newCmd_Fsck() *cli.Command {
	return &cli.Command{
		Name:  "fsck",
		Usage: "Walk every known hash->location pair and confirm its bytes still hash to their key.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			c, err := openReadOnly(cctx.String("dir"))
			if err != nil {
				return err
			}

			var checked, bad int
			err = c.Iterate(func(e caskade.DataEntry) error {
				checked++
				blob, err := c.ReadBytes(e.Hash)
				if err != nil {
					bad++
					fmt.Printf("FAIL %s: %v\n", e.Hash, err)
					return nil
				}
				if got := ids.Of(blob); got != e.Hash {
					bad++
					fmt.Printf("FAIL %s: rehashed to %s\n", e.Hash, got)
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Printf("checked %d entries, %d bad\n", checked, bad)
			if bad > 0 {
				return fmt.Errorf("caskctl fsck: %d of %d entries failed validation", bad, checked)
			}
			return nil
		},
	}
}
