package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/rpcpool/caskade/ids"
	"github.com/urfave/cli/v2"
)

func newCmd_Link() *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Bind a journal-kind anchor's purpose slot to a hash key. Prints whether the binding changed.",
		ArgsUsage: "<anchor-hex> <purpose> <hash-hex>",
		Flags:     []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			args := cctx.Args()
			if args.Len() != 3 {
				return fmt.Errorf("caskctl link: want <anchor-hex> <purpose> <hash-hex>, got %d args", args.Len())
			}
			anchorBytes, err := hex.DecodeString(args.Get(0))
			if err != nil {
				return fmt.Errorf("caskctl link: invalid anchor %q: %w", args.Get(0), err)
			}
			anchor, err := ids.RakeFromBytes(anchorBytes)
			if err != nil {
				return err
			}
			purpose, err := strconv.ParseUint(args.Get(1), 10, 8)
			if err != nil {
				return fmt.Errorf("caskctl link: invalid purpose %q: %w", args.Get(1), err)
			}
			target, err := parseHashArg(args.Get(2))
			if err != nil {
				return err
			}

			c, err := openWritable(cctx.String("dir"))
			if err != nil {
				return err
			}
			changed, err := c.SetLink(anchor, uint8(purpose), target)
			if err != nil {
				return err
			}
			fmt.Println(changed)
			return nil
		},
	}
}
