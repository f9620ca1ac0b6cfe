package main

import (
	"fmt"
	"os"

	"github.com/telekom/splitwise-relay/pkg/cli"
)

func main() {
	root := cli.NewRootCommand(cli.DefaultConfig())
	// Platforms that start the binary without arguments get the server.
	if len(os.Args) == 1 {
		root.SetArgs([]string{"serve"})
	}
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
