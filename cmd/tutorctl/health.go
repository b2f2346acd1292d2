package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

type healthReport struct {
	Status            string `json:"status"`
	ConnectedSessions int    `json:"connectedSessions"`
	Timestamp         string `json:"timestamp"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health and connected tutor sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		report, err := fetchHealth(ctx, strings.TrimSuffix(serverURL, "/")+"/health")
		if err != nil {
			return err
		}

		fmt.Println(styleTitle.Render("GOALPATH SERVER"))
		fmt.Printf("%s %s\n", styleLabel.Render("Status   "), report.Status)
		fmt.Printf("%s %d\n", styleLabel.Render("Sessions "), report.ConnectedSessions)
		fmt.Printf("%s %s\n", styleLabel.Render("Time     "), styleMuted.Render(report.Timestamp))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func fetchHealth(ctx context.Context, url string) (*healthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server unhealthy: %s", resp.Status)
	}
	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &report, nil
}
