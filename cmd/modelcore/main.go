// Command modelcore compiles model schemas and applies software type
// conventions to project plugins.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/modelcore/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Commands report their own ExitErrors.
		fmt.Fprintln(stderr, err)
	}
	return cli.GetExitCode(err)
}
