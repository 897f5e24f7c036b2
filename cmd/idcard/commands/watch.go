package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/idcard-reader/internal/batch"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		dir      string
		debounce time.Duration
		exts     []string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan cards as they are written under a directory, one JSON line per file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := batch.NewRunner(a.scan, a.logger,
				batch.WithWorkers(a.cfg.Batch.Workers),
				batch.WithFileTimeout(a.cfg.Batch.FileTimeout),
				batch.WithExtensions(exts...),
				batch.WithScanOptions(a.options()),
			)
			results, err := runner.Watch(cmd.Context(), dir, debounce)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			for fr := range results {
				if err := enc.Encode(fr); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to watch (required)")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before pending files are scanned")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "extensions to include (defaults to every supported format)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
