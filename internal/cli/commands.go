package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/chase"
)

func newLoginCommand(a *app) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session to the cookie file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.newBrowser()
			if err != nil {
				return fmt.Errorf("start %s browser: %w", a.cfg.Backend, err)
			}
			opts, err := a.scraperOptions(cmd, b)
			if err != nil {
				_ = b.Close()
				return err
			}
			s, err := chase.NewScraper(a.credentials(), opts...)
			if err != nil {
				_ = b.Close()
				return err
			}
			defer s.Close()

			if err := s.LoginWith(cmd.Context(), chase.LoginOptions{Code: code}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.cfg.CookieFile == "" {
				_, _ = fmt.Fprintln(out, "Logged in. Set --cookie-file to keep the session.")
				return nil
			}
			_, _ = fmt.Fprintf(out, "Logged in. Session saved to %s\n", a.cfg.CookieFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "otp-code", "", "one-time code already received; skips requesting a new one")
	return cmd
}

func newAccountsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, accounts, err := a.accounts(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			renderAccounts(cmd.OutOrStdout(), accounts)
			return nil
		},
	}
}

func newTransactionsCommand(a *app) *cobra.Command {
	var (
		since, through string
		maxPages       int
	)

	cmd := &cobra.Command{
		Use:   "transactions ACCOUNT_ID",
		Short: "List an account's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := chase.TransactionOptions{MaxPages: maxPages}
			var err error
			if opts.Since, err = parseDay(since); err != nil {
				return err
			}
			if opts.Through, err = parseDay(through); err != nil {
				return err
			}

			s, accounts, err := a.accounts(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			acct, err := findAccount(accounts, args[0])
			if err != nil {
				return err
			}

			txns, err := chase.Collect(cmd.Context(), acct.Transactions(opts))
			if err != nil {
				return err
			}
			a.logger.Info("transactions listed", zap.String("account", acct.Name), zap.Int("count", len(txns)))

			renderTransactions(cmd.OutOrStdout(), acct.Kind, txns)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "oldest date to include (YYYY-MM-DD or MM/DD/YYYY)")
	cmd.Flags().StringVar(&through, "through", "", "newest date to include (YYYY-MM-DD or MM/DD/YYYY)")
	cmd.Flags().IntVar(&maxPages, "max-pages", chase.DefaultMaxPages, "stop after this many history pages")
	return cmd
}

func newPayCommand(a *app) *cobra.Command {
	var from, amount string

	cmd := &cobra.Command{
		Use:   "pay CARD_ID",
		Short: "Pay a credit card from a checking or savings account",
		Long: `Pay a credit card. --amount is either a number or one of
statement, current or minimum to pay that balance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payment, err := parsePaymentAmount(amount)
			if err != nil {
				return err
			}

			s, accounts, err := a.accounts(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			card, err := findCredit(accounts, args[0])
			if err != nil {
				return err
			}
			source, err := findDebit(accounts, from)
			if err != nil {
				return err
			}

			paid, err := card.PayFrom(cmd.Context(), source, payment)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scheduled payment of $%s to %s from %s\n", paid.StringFixed(2), card.Name, source.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "id of the account to pay from")
	cmd.Flags().StringVar(&amount, "amount", string(chase.PayStatementBalance), "amount, or statement, current or minimum")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newTransferCommand(a *app) *cobra.Command {
	var req chase.TransferRequest

	cmd := &cobra.Command{
		Use:   "transfer FROM_ID TO_ID",
		Short: "Move money between checking and savings accounts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := decimal.NewFromString(strings.TrimSpace(req.Amount)); err != nil {
				return fmt.Errorf("%w: amount %q is not a number", bank.ErrUsage, req.Amount)
			}

			s, accounts, err := a.accounts(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			source, err := findDebit(accounts, args[0])
			if err != nil {
				return err
			}
			target, err := findDebit(accounts, args[1])
			if err != nil {
				return err
			}

			if err := source.TransferTo(cmd.Context(), target, req); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scheduled transfer of $%s from %s to %s\n", req.Amount, source.Name, target.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Amount, "amount", "", "amount to move")
	cmd.Flags().StringVar(&req.Memo, "memo", "", "memo shown on both statements")
	cmd.Flags().StringVar(&req.Date, "date", "", "deliver-by date as the portal expects it, e.g. 03/18/2024")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// --- ARGUMENTS ---

var dayLayouts = []string{"2006-01-02", "01/02/2006"}

// parseDay accepts an ISO or US calendar date; empty means no bound.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q is neither YYYY-MM-DD nor MM/DD/YYYY", bank.ErrUsage, s)
}

func parsePaymentAmount(s string) (chase.PaymentAmount, error) {
	p := chase.PaymentAmount(strings.ToLower(strings.TrimSpace(s)))
	if p.Symbolic() {
		return p, nil
	}
	d, err := decimal.NewFromString(string(p))
	if err != nil {
		return "", fmt.Errorf("%w: amount %q is neither a number nor statement, current or minimum", bank.ErrUsage, s)
	}
	return chase.Amount(d), nil
}
