package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/tally/internal/schema"
)

// exportBundle is every local document in one file.
type exportBundle struct {
	State       schema.LocalState    `json:"state" yaml:"state"`
	Settings    schema.Settings      `json:"settings" yaml:"settings"`
	GymSessions []schema.GymSession  `json:"gym_sessions" yaml:"gym_sessions"`
	GymRoutines []schema.GymRoutine  `json:"gym_routines" yaml:"gym_routines"`
	AdminTasks  []schema.AdminTask   `json:"admin_tasks" yaml:"admin_tasks"`
	Usage       schema.UsageCounters `json:"usage_counters" yaml:"usage_counters"`
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "track",
	Short:   "Export local data as JSON or YAML",
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a := mustOpen(nil)
		defer a.Close()

		b := exportBundle{
			State:       a.store.LoadState(),
			Settings:    a.store.LoadSettings(),
			GymSessions: a.store.LoadGymSessions(),
			GymRoutines: a.store.LoadGymRoutines(),
			AdminTasks:  a.store.LoadAdminTasks(),
			Usage:       a.store.LoadUsageCounters(),
		}

		var w io.Writer = os.Stdout
		if output != "" && output != "-" {
			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
			if err != nil {
				fatal("failed to create %s: %v", output, err)
			}
			defer f.Close()
			w = f
		}

		if err := writeExport(w, format, b); err != nil {
			fatal("%v", err)
		}
	},
}

func writeExport(w io.Writer, format string, b exportBundle) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(b)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func init() {
	exportCmd.Flags().StringP("format", "f", "json", "json or yaml")
	exportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
