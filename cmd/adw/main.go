// Command adw runs the AI Developer Workflow stages against a repository.
package main

import (
	"fmt"
	"os"

	"github.com/valksor/go-adw/cmd/adw/commands"
	"github.com/valksor/go-adw/internal/display"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprint(os.Stderr, display.FormatError(err))
		os.Exit(1)
	}
}
