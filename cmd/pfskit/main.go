package main

import (
	"os"

	"pfskit/cmd/pfskit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
