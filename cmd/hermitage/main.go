// Command hermitage runs transaction isolation anomaly scenarios against
// SQL servers.
package main

import (
	"fmt"
	"os"

	"github.com/avantgardnerio/hermitage/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
