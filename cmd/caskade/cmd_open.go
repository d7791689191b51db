package main

import (
	"fmt"

	"github.com/rpcpool/caskade/caskade"
	"github.com/urfave/cli/v2"
)

func newCmd_Open() *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Bootstrap a new caskade directory, or report the state of an existing one.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			dir := cctx.String("dir")
			c, err := caskade.Open(dir, nil, nil)
			if err != nil {
				return err
			}
			fmt.Printf("origin: %s\nstate:  %s\n", c.Origin().String(), c.State())
			return nil
		},
	}
}
