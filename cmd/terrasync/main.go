// Command terrasync runs the field data import core: the HTTP API for
// operators and device sync, the spool intake watcher, and the audit
// outbox publisher.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "terrasync",
		Short:         "Offline field data import core for the land and property registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newImportCmd(), newMigrateCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "terrasync:", err)
		os.Exit(1)
	}
}
