// Command orderctl edits order line items and runs the status
// reconciliation guard.
package main

import (
	"fmt"
	"os"

	"github.com/smvora4u/restaurant-management/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
