// Command switchyard runs the workflow rules engine and its admin API.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/switchyard/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
