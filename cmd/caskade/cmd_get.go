package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/rpcpool/caskade/ids"
	"github.com/urfave/cli/v2"
)

func newCmd_Get() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a blob by hash key and write it to stdout or --out.",
		ArgsUsage: "<hash-hex>",
		Flags: []cli.Flag{
			FlagDir,
			&cli.StringFlag{Name: "out", Usage: "write to this file instead of stdout"},
		},
		Action: func(cctx *cli.Context) error {
			hash, err := parseHashArg(cctx.Args().First())
			if err != nil {
				return err
			}
			c, err := openReadOnly(cctx.String("dir"))
			if err != nil {
				return err
			}
			blob, err := c.ReadBytes(hash)
			if err != nil {
				return err
			}
			if out := cctx.String("out"); out != "" {
				return os.WriteFile(out, blob, 0o644)
			}
			_, err = os.Stdout.Write(blob)
			return err
		},
	}
}

func parseHashArg(s string) (ids.HashKey, error) {
	if s == "" {
		return ids.HashKey{}, fmt.Errorf("caskctl: missing <hash-hex> argument")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ids.HashKey{}, fmt.Errorf("caskctl: invalid hash %q: %w", s, err)
	}
	return ids.HashKeyFromBytes(b)
}
