// Command possync runs and inspects the offline order sync engine of a POS
// terminal.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/possync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
