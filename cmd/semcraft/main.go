// Package main provides the semcraft command-line entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/semcraft/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
