package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func newCmd_Checkpoint() *cli.Command {
	return &cli.Command{
		Name:  "checkpoint",
		Usage: "Write a manual checkpoint, unconditionally.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			c, err := openWritable(cctx.String("dir"))
			if err != nil {
				return err
			}
			cp, err := c.Checkpoint()
			if err != nil {
				return err
			}
			fmt.Printf("checkpoint_id: %s\nrange:         [%d,%d)\n", cp.CheckpointId, cp.Start, cp.End)
			return nil
		},
	}
}
