// cmd/charlock/main.go
//
// Entry point for the charlock CLI. It loads the character lock plugin into an
// in-process host and exposes it three ways:
//
//	charlock apply   - run before_task_enqueue on one JSON task descriptor
//	charlock serve   - HTTP hook bridge for hosts in another process
//	charlock panel   - the settings panel in the terminal

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
