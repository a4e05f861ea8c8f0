// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/novelty-engine/internal/archive"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or export archived analysis reports",
	Long: `History lists previously archived reports, newest first. With --export
it writes one full report as YAML to stdout instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archive.NewStore(archiveConfig(cmd).Dir)
		if err != nil {
			return err
		}
		defer store.Close()

		if exportID, _ := cmd.Flags().GetInt64("export"); exportID > 0 {
			return store.ExportYAML(os.Stdout, exportID)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := store.List(limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "no archived reports")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPROCESSED\tRISK\tSCORE\tDEGRADED\tTITLE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%v\t%s\n",
				e.ID,
				e.ProcessedAt.Format(time.RFC3339),
				e.RiskCategory,
				e.OverallScore,
				e.DegradedRun,
				e.Title)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().String("archive-dir", "", "directory for the report archive database (default reports)")
	historyCmd.Flags().Int("limit", 20, "maximum entries to list")
	historyCmd.Flags().Int64("export", 0, "export the report with this ID as YAML")

	rootCmd.AddCommand(historyCmd)
}
