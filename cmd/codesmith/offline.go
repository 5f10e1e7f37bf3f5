package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var offlineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Inspect or reset the server's offline mode",
}

var offlineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running server's offline state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status struct {
			Offline             bool `json:"offline"`
			ConsecutiveFailures int  `json:"consecutive_failures"`
		}
		if err := serverJSON(http.MethodGet, "/api/offline", &status); err != nil {
			return err
		}
		if status.Offline {
			fmt.Printf("OFFLINE (consecutive failures: %d), run `codesmith offline reset` to re-enable network calls\n",
				status.ConsecutiveFailures)
		} else {
			fmt.Printf("online (consecutive failures: %d)\n", status.ConsecutiveFailures)
		}
		return nil
	},
}

var offlineResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Explicitly clear offline mode on the running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status struct {
			Offline bool `json:"offline"`
		}
		if err := serverJSON(http.MethodPost, "/api/offline/reset", &status); err != nil {
			return err
		}
		fmt.Println("offline mode cleared")
		return nil
	},
}

// serverJSON calls the running server's API.
func serverJSON(method, path string, out interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, "http://"+cfg.Server.Addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is the server running at %s? %w", cfg.Server.Addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func init() {
	offlineCmd.AddCommand(offlineStatusCmd)
	offlineCmd.AddCommand(offlineResetCmd)
}
