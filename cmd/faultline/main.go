// Command faultline runs fault-injection scenarios against registered entry
// points, locally or behind an HTTP API.
package main

import (
	"io"
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI with args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err != nil && !isReported(err) {
		printErr(stderr, err)
	}
	return ExitCode(err)
}
