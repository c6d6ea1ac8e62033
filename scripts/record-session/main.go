// record-session logs on with the HTTP backend, walks the accounts list and
// the first history page of every account, and writes the traffic as a
// sanitized HAR recording for replay tests.
//
// Usage:
//
//	CHASE_USERNAME=... CHASE_PASSWORD=... go run ./scripts/record-session/main.go -scenario=session
//	go run ./scripts/record-session/main.go --env-file=.env.recording --otp-channel=email --raw
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/grez-lucas/chase-scraper/internal/config"
	"github.com/grez-lucas/chase-scraper/internal/observability"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/chase"
	banktest "github.com/grez-lucas/chase-scraper/internal/scraper/bank/testutil"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"github.com/grez-lucas/chase-scraper/internal/scraper/testutil"
)

func main() {
	flags := pflag.NewFlagSet("record-session", pflag.ExitOnError)
	config.RegisterFlags(flags)
	scenario := flags.String("scenario", "session", "Scenario name, saved under testdata/recordings")
	output := flags.String("output", "", "Output HAR file path (overrides -scenario)")
	raw := flags.Bool("raw", false, "Also keep the unsanitized recording next to the output (DON'T commit it)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewStderrLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	outPath := *output
	if outPath == "" {
		outPath = banktest.RecordingPath(string(bank.BankChase), *scenario)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 1. Drive the portal through the recorder
	rec := testutil.NewRecorder(nil)
	if err := walk(ctx, cfg, rec, logger); err != nil {
		// Keep what was recorded up to the failure; it is often the
		// interesting part.
		fmt.Printf("⚠️  Session ended with: %v\n", err)
	}

	har := rec.HAR()
	fmt.Printf("Recorded %d requests\n", len(har.Entries))

	// 2. Save
	if *raw {
		rawPath := outPath + ".raw"
		if err := testutil.SaveHAR(rawPath, har); err != nil {
			fmt.Printf("Error saving HAR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("🔓 Unsanitized copy: %s\n", rawPath)
	}
	if err := testutil.SaveHAR(outPath, testutil.SanitizeHAR(har)); err != nil {
		fmt.Printf("Error saving HAR: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Sanitized HAR saved to: %s\n", outPath)
	fmt.Println("⚠️  Review account names and amounts before committing!")
}

func walk(ctx context.Context, cfg *config.Config, rec *testutil.Recorder, logger *zap.Logger) error {
	b, err := browser.NewHTTPBrowser(
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithTimeout(cfg.Timeout),
		browser.WithTransport(rec),
		browser.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	channel, err := chase.ParseOTPChannel(cfg.OTPChannel)
	if err != nil {
		_ = b.Close()
		return err
	}

	s, err := chase.New(ctx, bank.Credentials{Username: cfg.Username, Password: cfg.Password},
		chase.WithBrowser(b),
		chase.WithBaseURL(cfg.BaseURL),
		chase.WithOTPChannel(channel),
		chase.WithOTPPrompt(chase.StdinPrompt(os.Stdin, os.Stderr)),
		chase.WithLogger(logger),
	)
	if err != nil {
		_ = b.Close()
		return err
	}
	defer func() { _ = s.Close() }()

	accounts, err := s.Accounts(ctx)
	if err != nil {
		return err
	}

	for _, acct := range accounts {
		txns, err := chase.Collect(ctx, acct.Transactions(chase.TransactionOptions{MaxPages: 1}))
		if err != nil {
			logger.Warn("history not recorded", zap.String("account", acct.ID), zap.Error(err))
			continue
		}
		fmt.Printf("📄 %s: %d transactions\n", acct.Name, len(txns))
	}
	return nil
}
