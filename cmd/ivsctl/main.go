// Package main is the entry point for the ivsctl CLI.
package main

import "github.com/streamops/ivsctl/internal/cli"

func main() {
	cli.Execute()
}
