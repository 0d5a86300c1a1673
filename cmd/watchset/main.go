// Package main provides the entry point for the watchset CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/watchset/cmd/watchset/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
