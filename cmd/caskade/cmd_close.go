package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func newCmd_Close() *cli.Command {
	return &cli.Command{
		Name:  "close",
		Usage: "Run the terminal NEXT_CASK+ON_CASKADE_CLOSE sequence, rejecting every future write.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			c, err := openWritable(cctx.String("dir"))
			if err != nil {
				return err
			}
			cp, err := c.Close()
			if err != nil {
				return err
			}
			fmt.Printf("closed at checkpoint %s\n", cp.CheckpointId)
			return nil
		},
	}
}
