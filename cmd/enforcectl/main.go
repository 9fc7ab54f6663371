package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// enforcectl is the operator CLI for the dispute API: trigger deadline
// scans, inspect enforcement state and check export jobs without crafting
// curl invocations by hand.

var (
	apiBase string
	token   string
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "enforcectl",
		Short:         "Operator CLI for the CredAssure dispute API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&apiBase, "api", envOr("ENFORCECTL_API", "http://localhost:8080/api/v1"), "API base URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("ENFORCECTL_TOKEN"), "Bearer access token")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")

	root.AddCommand(scanCmd(), rulesCmd(), viewCmd(), summaryCmd(), exportStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a deadline scan now and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, http.MethodPost, "/enforcement/scan")
		},
	}
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the active enforcement rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, http.MethodGet, "/enforcement/rules")
		},
	}
}

func viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <dispute-item-id>",
		Short: "Show the enforcement view of a dispute item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, http.MethodGet, "/disputes/"+args[0]+"/enforcement")
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <member-id>",
		Short: "Show the enforcement summary for a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, http.MethodGet, "/members/"+args[0]+"/enforcement")
		},
	}
}

func exportStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-status <job-id>",
		Short: "Show the status of an export job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, http.MethodGet, "/exports/"+args[0])
		},
	}
}

func request(cmd *cobra.Command, method, path string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(apiBase, "/")+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		body = out
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s returned %s", method, path, resp.Status)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
