// Package commands implements the idcard command line.
package commands

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/scan"
)

// app is the state shared by the subcommands once the root pre-run has loaded
// configuration.
type app struct {
	cfgFile string
	envFile string
	useLLM  bool
	verbose bool

	cfg    *common.Config
	logger *slog.Logger
	scan   *scan.Service
}

// NewRootCommand builds the command tree. Tests inject a prepared service
// through svc; nil builds one from configuration.
func NewRootCommand(svc *scan.Service) *cobra.Command {
	a := &app{scan: svc}

	root := &cobra.Command{
		Use:   "idcard",
		Short: "Read Romanian identity cards",
		Long: `idcard extracts the printed fields of Romanian identity cards from OCR text,
images or PDFs, and validates personal numeric codes (CNP).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (YAML)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().BoolVar(&a.useLLM, "llm", false, "fill fields the rules missed with the language model")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newExtractCommand(a),
		newValidateCommand(a),
		newOCRCommand(a),
		newBatchCommand(a),
		newWatchCommand(a),
	)
	return root
}

// Execute runs the root command, cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(nil).ExecuteContext(ctx)
}

func (a *app) init(logOut io.Writer) error {
	if err := common.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := common.LoadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(logOut)
	slog.SetDefault(a.logger)

	if a.scan == nil {
		a.scan = scan.NewFromConfig(cfg, nil, a.logger)
	}
	return nil
}

func (a *app) options() scan.Options {
	return scan.Options{UseLLM: a.useLLM, MergeLLM: a.useLLM}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
