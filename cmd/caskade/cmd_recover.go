package main

import (
	"fmt"
	"time"

	"github.com/rpcpool/caskade/caskade"
	"github.com/urfave/cli/v2"
)

func newCmd_Recover() *cli.Command {
	return &cli.Command{
		Name:  "recover",
		Usage: "Recover a caskade left by an unclean shutdown.",
		Flags: []cli.Flag{
			FlagDir,
			&cli.DurationFlag{
				Name:  "quiet",
				Usage: "confirm the active file stops growing for this long before recovering",
			},
		},
		Action: func(cctx *cli.Context) error {
			c, err := caskade.Open(cctx.String("dir"), nil, nil)
			if err != nil {
				return err
			}
			cp, err := c.Recover(cctx.Duration("quiet"))
			if err != nil {
				return err
			}
			fmt.Printf("recovered at checkpoint %s\n", cp.CheckpointId)
			return nil
		},
	}
}
