package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func newCmd_Put() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Write a blob and print its hash key.",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			FlagDir,
			&cli.BoolFlag{Name: "force", Usage: "write even if the hash is already present"},
		},
		Action: func(cctx *cli.Context) error {
			src := cctx.Args().First()
			if src == "" {
				return fmt.Errorf("caskctl put: missing <file|-> argument")
			}
			blob, err := readInput(src)
			if err != nil {
				return err
			}

			c, err := openWritable(cctx.String("dir"))
			if err != nil {
				return err
			}
			hash, err := c.WriteBytes(blob, cctx.Bool("force"))
			if err != nil {
				return err
			}
			fmt.Println(hash.String())
			return nil
		},
	}
}

func readInput(src string) ([]byte, error) {
	if src == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(src)
}
