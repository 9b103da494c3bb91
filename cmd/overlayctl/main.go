// Overlayctl is a console utility for configuring on-screen widgets and
// overlays on network video devices.
//
// It talks to the device's JSON CGI endpoints for widget and overlay
// configuration, keeps local backups of entity drafts, and provides an
// interactive console for live editing with debounced sync.
//
// Usage:
//
//	overlayctl [command] [flags]
//
// Running without arguments launches the interactive console.
// See 'overlayctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nwstad/overlayctl/internal/logging"
	"github.com/nwstad/overlayctl/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "overlayctl",
	Short: "Video Device Overlay Configuration Utility",
	Long: `A console utility for configuring on-screen widgets and overlays
on network video devices.

Provides device discovery, direct configuration commands, local backups
of entity drafts, and an interactive console with live editing.

If no command is specified, the interactive console will launch automatically.`,
	Version: version.Version,
}

func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the interactive console
		return runConsole(cmd, args)
	}

	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("overlayctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
