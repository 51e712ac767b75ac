// Command leaseqa is an operator CLI for the LeaseQA backend: it lists and
// shows questions the way the board groups them, lists folders, submits
// AI lease reviews and prints site stats.
package main

import (
	"os"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
