// Package main provides the entry point for the mojify CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/mojify/cmd/mojify/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
