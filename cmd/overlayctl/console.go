package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nwstad/overlayctl/internal/config"
	"github.com/nwstad/overlayctl/internal/console"
	"github.com/nwstad/overlayctl/internal/events"
	"github.com/nwstad/overlayctl/internal/logging"
)

// runConsole launches the interactive console. It is the default command,
// so running 'overlayctl' with no arguments lands here.
func runConsole(cmd *cobra.Command, args []string) error {
	client, err := resolveClient()
	if err != nil {
		return err
	}

	backupDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to locate config directory: %w", err)
	}

	model := console.New(client, client.BaseURL, backupDir)
	if settings, err := config.LoadSettings(); err == nil {
		model.SortOrder = settings.SortOrder
	}
	program := tea.NewProgram(model, tea.WithAltScreen())

	// The event channel feeds session-visibility wakes into the console.
	// A dead or absent channel is fine; the console just won't auto-refresh.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if watcher, err := events.NewWatcher(client.BaseURL, client.Username, client.Password); err == nil {
		watcher.OnWake(func() {
			program.Send(console.WakeMsg{})
		})
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logging.Debug("Event channel ended: " + err.Error())
			}
		}()
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}
