// Command caskctl operates a caskade directory from the shell: it exposes
// spec.md §6's programmatic surface (open, write_bytes, set_link, checkpoint,
// pause, resume, recover, close, read_bytes, the index inspections) as
// subcommands, one newCmd_X() *cli.Command per verb registered into a
// single urfave/cli App.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("caskctl")

// gitCommitSHA is set by the release build via -ldflags.
var gitCommitSHA = ""

// FlagDir names the caskade directory every subcommand operates on.
var FlagDir = &cli.StringFlag{
	Name:     "dir",
	Aliases:  []string{"d"},
	Usage:    "caskade directory",
	EnvVars:  []string{"CASKCTL_DIR"},
	Required: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-interrupt:
			fmt.Println()
			log.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "caskctl",
		Version:     gitCommitSHA,
		Usage:       "operate an append-only, content-addressed caskade log store",
		Description: "caskctl opens a caskade directory and runs a single write, read, or lifecycle operation against it.",
		Commands: []*cli.Command{
			newCmd_Open(),
			newCmd_Put(),
			newCmd_Get(),
			newCmd_Link(),
			newCmd_Checkpoint(),
			newCmd_Pause(),
			newCmd_Resume(),
			newCmd_Recover(),
			newCmd_Close(),
			newCmd_Stat(),
			newCmd_Fsck(),
			newCmd_Version(),
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
