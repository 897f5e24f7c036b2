package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/idcard-reader/internal/scan"
)

func newExtractCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract card fields from a scan or from OCR text on stdin",
		Long: `Extract card fields. With no argument or "-", OCR text is read from stdin.
Otherwise the file is OCR'd first (images, HEIC, PDF; .txt files are read as text).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res scan.Result
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				raw, rerr := io.ReadAll(cmd.InOrStdin())
				if rerr != nil {
					return fmt.Errorf("read stdin: %w", rerr)
				}
				res, err = a.scan.ScanText(cmd.Context(), string(raw), a.options())
			} else {
				res, err = a.scan.ScanFile(cmd.Context(), args[0], a.options())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
