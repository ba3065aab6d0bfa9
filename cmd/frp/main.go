// Command frp runs, validates and traces reactive scenes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/frp/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
