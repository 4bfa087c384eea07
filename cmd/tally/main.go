// Command tally is an offline-first habit tracker. Check-ins are written to
// a local SQLite store immediately and synced to a Turso database when a
// session and a connection are available.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/config"
	"github.com/mschirtzinger/tally/internal/ui"
)

var (
	configPath string
	verbose    bool

	cfg  *config.Config
	logs *config.Logs
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Offline-first habit tracker with optional cloud sync",
	Long: `tally records daily habit check-ins, streaks and XP on this device and
keeps a remote copy in sync when you are signed in and online.

Every write lands in the local store first. Writes made while offline are
queued and delivered in order once a connection comes back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logs = config.NewLogs(cfg.Log, verbose)
		ui.Setup(os.Stdout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/tally/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also write logs to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "track", Title: "Tracking:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "account", Title: "Account:"},
	)
}

// fatal prints an error and exits.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{ui.RenderFail("Error:")}, args...)...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
