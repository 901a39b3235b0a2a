package main

import (
	"os"

	"github.com/go-go-golems/colloquy/cmd/colloquy/cmds"
)

func main() {
	if err := cmds.Execute(); err != nil {
		os.Exit(1)
	}
}
