// Package main provides the entry point for the recap CLI.
package main

import (
	"os"

	// Embedded zoneinfo so timezone settings work on hosts without it.
	_ "time/tzdata"

	"github.com/raphaelgruber/recap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
