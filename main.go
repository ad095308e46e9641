// Package main is the entry point for the argus sequence detection service.
package main

import (
	"os"

	"argus/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
