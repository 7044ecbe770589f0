package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ai-batcher/internal/storage"
)

func newExportCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Rebuild a spreadsheet log from a JSONL journal",
		Long: `Rewrites the spreadsheet so it holds exactly the entries of the journal
written with --journal. Rows already in the spreadsheet are replaced.

Example:
  batcher export --journal runs.jsonl --out chat_logs.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JournalPath == "" {
				return errors.New("no journal given: use --journal or JOURNAL_PATH")
			}
			if _, err := os.Stat(c.cfg.JournalPath); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("journal %s not found", c.cfg.JournalPath)
			}
			if out == "" {
				out = c.cfg.LogFilePath
			}

			src, err := storage.NewFileRecorder(c.cfg.JournalPath)
			if err != nil {
				return err
			}
			dst, err := storage.NewXLSXRecorder(out)
			if err != nil {
				return err
			}
			n, err := storage.Export(src, dst)
			if err != nil {
				return err
			}
			c.logger.Info("journal exported", zap.String("journal", c.cfg.JournalPath), zap.String("out", out), zap.Int("rows", n))
			fmt.Fprintf(cmd.OutOrStdout(), "📤 Exported %d entries to %s\n", n, dst.Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "spreadsheet to rebuild (defaults to LOG_FILE_PATH)")
	return cmd
}
