// Package main is the entry point for the vitalctl operator CLI.
package main

import (
	"os"

	"github.com/good-yellow-bee/vitalguard/cmd/vitalctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
