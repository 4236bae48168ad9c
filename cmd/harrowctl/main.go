// Command harrowctl is a small operator-facing tool for exercising a
// harrow-backed file: dumping ranges, creating writable buffers,
// shifting bytes with copy_within, and running a random-access cache
// exerciser.
package main

import (
	"os"

	"github.com/pnevyk/harrow/cmd/harrowctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
