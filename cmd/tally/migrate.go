package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/migrate"
	"github.com/mschirtzinger/tally/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "account",
	Short:   "Upload this device's history to your account",
	Long: `Upload everything recorded on this device to the remote, once.

Steps run in order. Session, profile and catalog seeding must succeed or the
run stops and can be retried; later sections report failures but do not
block each other. Re-running after a partial run reuses already seeded
habits instead of creating duplicates.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		report, _ := cmd.Flags().GetString("report")

		a := mustOpen(nil)
		defer a.Close()

		if a.backend == nil {
			fatal("no remote configured (set remote.url or remote.sqlite_path)")
		}

		runner := migrate.NewRunner(a.store, a.backend, a.provider, migrate.Options{
			BatchSize: cfg.Migrate.BatchSize,
			Force:     force,
			Catalog:   a.catalog,
			Logger:    logs.Logger("migrate"),
			OnStep:    printStep,
		})

		summary, err := runner.Run(cmd.Context())

		if report != "" {
			out, yerr := summary.YAML()
			if yerr == nil {
				yerr = os.WriteFile(report, out, 0600)
			}
			if yerr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", yerr)
			} else {
				fmt.Printf("   Report written to %s\n", report)
			}
		}

		switch {
		case err != nil:
			fatal("%v", err)
		case summary.AlreadyDone:
			fmt.Printf("%s Already migrated (use --force to run again)\n", ui.RenderPass("✓"))
		case summary.Success:
			fmt.Printf("\n%s Migration complete\n", ui.RenderPass("✓"))
		default:
			fmt.Printf("\n%s Migration finished with %s: %v\n", ui.RenderWarn("⚠"),
				ui.Plural(len(summary.FailedSteps), "failed section"), summary.FailedSteps)
		}
	},
}

func printStep(s migrate.Step) {
	switch s.Status {
	case migrate.StatusRunning:
		fmt.Printf("%s %s...\n", ui.RenderAccent("→"), s.Label)
	case migrate.StatusDone:
		line := fmt.Sprintf("  %s %s", ui.RenderPass("✓"), s.Label)
		if s.Detail != "" {
			line += ui.RenderMuted(" (" + s.Detail + ")")
		}
		fmt.Println(line)
	case migrate.StatusError:
		fmt.Printf("  %s %s: %s\n", ui.RenderFail("✗"), s.Label, s.Error)
	}
}

func init() {
	migrateCmd.Flags().Bool("force", false, "run even if this device is already migrated")
	migrateCmd.Flags().String("report", "", "write a YAML step report to this file")
	rootCmd.AddCommand(migrateCmd)
}
