package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rybalko/askfirm/internal/config"
	"github.com/rybalko/askfirm/internal/storage"
	"github.com/rybalko/askfirm/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat in the terminal (runs the pipeline in-process)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		var store *storage.Store
		if cfg.Storage.DataDir != "" {
			store, err = storage.Open(cfg.Storage.DataDir)
			if err != nil {
				// Chat works without the interaction log.
				printWarning("interaction log unavailable: %v", err)
				store = nil
			} else {
				defer store.Close()
			}
		}

		answerer := buildAnswerer(cfg, store)

		p := tea.NewProgram(tui.New(answerer), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running chat UI: %w", err)
		}
		return nil
	},
}
