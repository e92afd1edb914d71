// Package main is the entry point for the bittu CLI.
package main

import (
	"os"

	"github.com/Rahiman13/Personal-assistant/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
