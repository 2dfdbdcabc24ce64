// Command chainwalk trains, stores and walks token Markov chains.
//
// Usage:
//
//	chainwalk [--config path] <command> [args]
//
// Commands:
//
//	train   - Seed a chain from text files
//	run     - Generate a reply from a chain
//	export  - Write a chain as JSON
//	import  - Store a chain read from JSON
//	stats   - Show statistics of a chain
//	list    - List stored chains
//	remove  - Delete a stored chain
//	render  - Render a template with chain text
package main

import (
	"fmt"
	"io"
	"os"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// execute runs the command line in args and releases the store afterwards,
// whether or not the command succeeded.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func main() {
	if err := execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
