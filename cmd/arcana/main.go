// Command arcana is the tarot reading client. It draws readings, manages the
// coin balance and purchases, and syncs with the arcana backend.
package main

import (
	"fmt"
	"os"

	"github.com/phrazzld/arcana/cmd/arcana/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
