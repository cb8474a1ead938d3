// Package main is the entry point for the semsql CLI binary.
package main

import (
	"os"

	cli "semsql/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
