package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ai-batcher/internal/analytics"
	"ai-batcher/internal/storage"
)

func newStatsCmd(c *cli) *cobra.Command {
	var (
		day    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the interactions in the spreadsheet log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := storage.NewXLSXRecorder(c.cfg.LogFilePath)
			if err != nil {
				return err
			}
			entries, err := rec.LoadInteractions()
			if err != nil {
				return err
			}

			var stats *analytics.Stats
			if day != "" {
				d, err := time.ParseInLocation("2006-01-02", day, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
				stats = analytics.AnalyzeDay(entries, d)
			} else {
				stats = analytics.Analyze(entries)
			}

			if asJSON {
				s, err := stats.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), stats.Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "only count interactions logged on this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	return cmd
}
