package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/idcard-reader/internal/batch"
	"github.com/joseph-ayodele/idcard-reader/internal/export"
)

func newBatchCommand(a *app) *cobra.Command {
	var (
		dir        string
		out        string
		workers    int
		exts       []string
		withHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Scan every card under a directory and write an XLSX report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "idcards.xlsx")
			}
			if workers <= 0 {
				workers = a.cfg.Batch.Workers
			}

			runner := batch.NewRunner(a.scan, a.logger,
				batch.WithWorkers(workers),
				batch.WithFileTimeout(a.cfg.Batch.FileTimeout),
				batch.WithExtensions(exts...),
				batch.WithSkipHidden(!withHidden),
				batch.WithScanOptions(a.options()),
			)
			results, stats, err := runner.RunDirectory(cmd.Context(), dir)
			if err != nil {
				return err
			}

			xlsx, err := export.RecordsXLSX(results, a.logger)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, xlsx, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.logger.Info("batch.report.written", "path", out, "rows", len(results))

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"report": out,
				"stats":  stats,
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to scan (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output XLSX path (defaults to idcards.xlsx next to --dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent scans (defaults to BATCH_WORKERS)")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "extensions to include (defaults to every supported format)")
	cmd.Flags().BoolVar(&withHidden, "hidden", false, "include hidden files and directories")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
