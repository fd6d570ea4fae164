// Package main is the entry point for the careclaw CLI.
package main

import (
	"os"

	"github.com/CareClaw/CareClaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
