// Package main is the entrypoint for the splitadmin operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/splitledger/splitledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
