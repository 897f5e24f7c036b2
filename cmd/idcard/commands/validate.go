package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

type codeVerdict struct {
	CNP   string `json:"cnp"`
	Valid bool   `json:"valid"`
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <cnp>...",
		Short: "Check the control digit of personal numeric codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]codeVerdict, 0, len(args))
			invalid := 0
			for _, code := range args {
				code = strings.TrimSpace(code)
				v := codeVerdict{CNP: code, Valid: idcard.IsValidCode(code)}
				if !v.Valid {
					invalid++
				}
				out = append(out, v)
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			a.logger.Debug("validate.done", "codes", len(out), "invalid", invalid)
			if invalid > 0 {
				return fmt.Errorf("%d of %d codes invalid", invalid, len(out))
			}
			return nil
		},
	}
}
