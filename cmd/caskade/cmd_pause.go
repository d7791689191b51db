package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func newCmd_Pause() *cli.Command {
	return &cli.Command{
		Name:  "pause",
		Usage: "Write an ON_CASKADE_PAUSE checkpoint and release the active file descriptor.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			c, err := openWritable(cctx.String("dir"))
			if err != nil {
				return err
			}
			cp, err := c.Pause()
			if err != nil {
				return err
			}
			fmt.Printf("paused at checkpoint %s\n", cp.CheckpointId)
			return nil
		},
	}
}
