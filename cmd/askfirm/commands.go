package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rybalko/askfirm/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question via the running server",
	Long: `Ask a one-shot question via the running server.

Examples:
  askfirm ask "What cloud services does Google offer?"
  askfirm ask --session 2f1c... "How much do they cost?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"message": question}
		if sessionID != "" {
			req["session_id"] = sessionID
		}

		resp, err := client.post(cmd.Context(), "/chat", req)
		if err != nil {
			return err
		}

		var result struct {
			SessionID string   `json:"session_id"`
			Reply     string   `json:"reply"`
			Sources   []string `json:"sources"`
			Status    string   `json:"status"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		if len(result.Sources) > 0 {
			fmt.Println()
			for _, src := range result.Sources {
				fmt.Printf("  %s\n", colorize(colorCyan, src))
			}
		}
		printStatus("Session", "%s", result.SessionID)
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session ID to continue a prior conversation")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the interaction log",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/interactions?limit=%d", limit)
		if sessionID != "" {
			path = "/interactions?session_id=" + sessionID
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var interactions []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			UserQuery string `json:"user_query"`
			Status    string `json:"status"`
		}
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			query := ix.UserQuery
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Printf("%s  %s  %-12s  %s\n",
				colorize(colorCyan, ix.ID[:8]),
				ix.CreatedAt,
				ix.Status,
				query,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions/"+args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	historyListCmd.Flags().String("session", "", "list interactions for one session only")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, s := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, s.Key), s.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(config.DefaultConfigPath(), key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
