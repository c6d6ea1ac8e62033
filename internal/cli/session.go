package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grez-lucas/chase-scraper/internal/config"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/chase"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
)

func (a *app) newBrowser() (browser.Browser, error) {
	switch a.cfg.Backend {
	case config.BackendRod:
		return browser.NewRodBrowser(
			browser.WithHeadless(a.cfg.Headless),
			browser.WithRodUserAgent(a.cfg.UserAgent),
			browser.WithRodLogger(a.logger),
		)
	default:
		return browser.NewHTTPBrowser(
			browser.WithUserAgent(a.cfg.UserAgent),
			browser.WithTimeout(a.cfg.Timeout),
			browser.WithLogger(a.logger),
		)
	}
}

func (a *app) scraperOptions(cmd *cobra.Command, b browser.Browser) ([]chase.Option, error) {
	channel, err := chase.ParseOTPChannel(a.cfg.OTPChannel)
	if err != nil {
		return nil, err
	}
	return []chase.Option{
		chase.WithBrowser(b),
		chase.WithBaseURL(a.cfg.BaseURL),
		chase.WithCookieFile(a.cfg.CookieFile),
		chase.WithOTPChannel(channel),
		chase.WithOTPPrompt(chase.StdinPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())),
		chase.WithLogger(a.logger),
	}, nil
}

func (a *app) credentials() bank.Credentials {
	return bank.Credentials{Username: a.cfg.Username, Password: a.cfg.Password}
}

// open starts a session on the accounts list, logging in when needed.
func (a *app) open(cmd *cobra.Command) (*chase.Scraper, error) {
	b, err := a.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("start %s browser: %w", a.cfg.Backend, err)
	}
	opts, err := a.scraperOptions(cmd, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	a.logger.Debug("opening session",
		zap.String("backend", a.cfg.Backend),
		zap.Any("credentials", a.credentials().Redacted()),
	)
	s, err := chase.New(cmd.Context(), a.credentials(), opts...)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return s, nil
}

// accounts opens a session and returns it with the accounts list.
func (a *app) accounts(cmd *cobra.Command) (*chase.Scraper, []*chase.Account, error) {
	s, err := a.open(cmd)
	if err != nil {
		return nil, nil, err
	}
	accounts, err := s.Accounts(cmd.Context())
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, accounts, nil
}

func findAccount(accounts []*chase.Account, id string) (*chase.Account, error) {
	for _, acct := range accounts {
		if acct.ID == id {
			return acct, nil
		}
	}
	return nil, fmt.Errorf("%w: no account with id %q", bank.ErrUsage, id)
}

func findDebit(accounts []*chase.Account, id string) (*chase.DebitAccount, error) {
	acct, err := findAccount(accounts, id)
	if err != nil {
		return nil, err
	}
	debit, ok := acct.AsDebit()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a checking or savings account", bank.ErrUsage, acct.Name)
	}
	return debit, nil
}

func findCredit(accounts []*chase.Account, id string) (*chase.CreditAccount, error) {
	acct, err := findAccount(accounts, id)
	if err != nil {
		return nil, err
	}
	credit, ok := acct.AsCredit()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a credit card", bank.ErrUsage, acct.Name)
	}
	return credit, nil
}
