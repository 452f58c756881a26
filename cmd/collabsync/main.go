// Command collabsync runs the collaborative editing session server.
package main

import (
	"os"

	"github.com/mkazlausk/collabsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
