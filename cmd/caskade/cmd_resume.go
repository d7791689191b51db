package main

import (
	"fmt"

	"github.com/rpcpool/caskade/caskade"
	"github.com/urfave/cli/v2"
)

func newCmd_Resume() *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Resume a paused caskade, writing an ON_CASKADE_RESUME checkpoint.",
		Flags: []cli.Flag{FlagDir},
		Action: func(cctx *cli.Context) error {
			c, err := caskade.Open(cctx.String("dir"), nil, nil)
			if err != nil {
				return err
			}
			cp, err := c.Resume()
			if err != nil {
				return err
			}
			fmt.Printf("resumed at checkpoint %s\n", cp.CheckpointId)
			return nil
		},
	}
}
