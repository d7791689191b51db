package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rpcpool/caskade/metrics"
	"github.com/urfave/cli/v2"
)

func newCmd_Version() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information of this binary.",
		Action: func(cctx *cli.Context) error {
			fmt.Println("CASKCTL")
			fmt.Printf("Commit: %s\n", gitCommitSHA)
			fmt.Println("Go version:", runtime.Version())

			vcsRevision, vcsTime, vcsModified, goamd64 := "", "", "", ""
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, setting := range info.Settings {
					switch setting.Key {
					case "vcs.revision", "vcs.time", "vcs.modified", "GOARCH", "GOOS":
						fmt.Printf("  %s: %s\n", setting.Key, setting.Value)
					}
					switch setting.Key {
					case "vcs.revision":
						vcsRevision = setting.Value
					case "vcs.time":
						vcsTime = setting.Value
					case "vcs.modified":
						vcsModified = setting.Value
					case "GOAMD64":
						goamd64 = setting.Value
					}
				}
			}

			metrics.Version.WithLabelValues(
				time.Now().UTC().Format(time.RFC3339),
				"", gitCommitSHA, runtime.Compiler, runtime.GOARCH, runtime.GOOS, goamd64,
				"git", vcsRevision, vcsTime, vcsModified,
			).Set(1)
			return nil
		},
	}
}
