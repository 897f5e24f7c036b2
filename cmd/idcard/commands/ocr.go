package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/idcard-reader/internal/ocr"
)

func newOCRCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Print the raw OCR text of a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := ocr.NewEngine(ocr.ConfigFrom(a.cfg.OCR), a.logger)
			res, err := engine.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print method, confidence and warnings with the text")
	return cmd
}
