package main

import (
	"os"

	"github.com/projetsjsl/GOB-sub006/cmd/finsync/commands"
)

// main is the entry point for the finsync CLI
// go run ./cmd/finsync [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
