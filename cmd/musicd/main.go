package main

import (
	"os"

	"github.com/ytget/musicd/cmd/musicd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
