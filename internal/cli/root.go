// Package cli implements the command-line interface for collabsync.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "collabsync",
	Short: "Real-time collaborative editing server",
	Long: `Collabsync is a session server for real-time collaborative file editing.
It tracks per-file editing sessions, resolves concurrent edits with a
three-way merge pipeline, and broadcasts changes to connected editors
over WebSocket.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// envOrDefault returns the environment value for key, or defaultVal if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
