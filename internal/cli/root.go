// Package cli is the chase command line: one subcommand per portal
// operation, all sharing the flags and environment handled by config.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/grez-lucas/chase-scraper/internal/config"
	"github.com/grez-lucas/chase-scraper/internal/observability"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
)

// app carries what PersistentPreRunE prepared to the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "chase",
		Short:         "Read balances and move money on the Chase mobile banking site",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg.Log, zapcore.AddSync(cmd.ErrOrStderr()))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newLoginCommand(a),
		newAccountsCommand(a),
		newTransactionsCommand(a),
		newPayCommand(a),
		newTransferCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

// Exit codes
const (
	exitFailure     = 1
	exitUsage       = 2
	exitApplication = 3
	exitUnverified  = 4
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, bank.ErrUsage), errors.Is(err, config.ErrInvalidConfig):
		return exitUsage
	case errors.Is(err, bank.ErrApplication):
		return exitApplication
	case errors.Is(err, bank.ErrWorkflowVerification):
		return exitUnverified
	default:
		return exitFailure
	}
}
