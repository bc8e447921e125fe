package main

import (
	"os"

	"github.com/bluetab/fraudpipe/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
