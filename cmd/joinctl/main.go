// Command joinctl drives the join backend from a terminal: it creates
// projects through the wizard, tracks and triggers them, moderates join
// requests and converts documents.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Version info (set during build)
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %s", err.Error()))
		os.Exit(1)
	}
}
