package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mkazlausk/collabsync/internal/models"
)

var (
	sessionsURL   string
	sessionsToken string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions on a running server",
	Long: `List active editing sessions on a running collabsync server.

Examples:
  collabsync sessions
  collabsync sessions --url http://localhost:8730`,
	Run: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	f := sessionsCmd.Flags()
	f.StringVar(&sessionsURL, "url",
		envOrDefault("COLLABSYNC_URL", "http://127.0.0.1:8730"),
		"Server base URL (env: COLLABSYNC_URL)")
	f.StringVar(&sessionsToken, "admin-token",
		os.Getenv("COLLABSYNC_ADMIN_TOKEN"),
		"Admin token (env: COLLABSYNC_ADMIN_TOKEN)")
}

func runSessions(_ *cobra.Command, _ []string) {
	req, err := http.NewRequest("GET", sessionsURL+"/api/sessions", nil)
	if err != nil {
		exitError("invalid server URL: %v", err)
	}
	if sessionsToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionsToken)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		exitError("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		exitError("server returned HTTP %d", resp.StatusCode)
	}

	var sessions []models.SessionSummary
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		exitError("failed to decode response: %v", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No active sessions.")
		return
	}

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	for _, s := range sessions {
		cyan.Printf("%s", shortID(s.SessionID))
		fmt.Printf("  %s:%s", s.ContainerID, s.FilePath)
		fmt.Printf("  v%d", s.Version)
		fmt.Printf("  %d user(s)", s.UserCount)
		if s.LockCount > 0 {
			yellow.Printf("  %d lock(s)", s.LockCount)
		}
		fmt.Printf("  up %s\n", time.Since(s.CreatedAt).Round(time.Second))
	}
}
