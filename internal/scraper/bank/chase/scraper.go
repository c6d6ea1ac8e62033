// Package chase drives the Chase mobile banking portal: login with one-time
// codes, the accounts list, transaction history, card payments and transfers
// between deposit accounts.
package chase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"go.uber.org/zap"
)

var _ bank.BankScraper = (*Scraper)(nil)

type Scraper struct {
	session *Session
	logger  *zap.Logger
}

type config struct {
	browser    browser.Browser
	baseURL    string
	cookieFile string
	otp        LoginOptions
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*config)

// WithBrowser replaces the default HTTP backend.
func WithBrowser(b browser.Browser) Option {
	return func(c *config) { c.browser = b }
}

// WithCookieFile persists cookies to path, in LWP format.
func WithCookieFile(path string) Option {
	return func(c *config) { c.cookieFile = path }
}

func WithOTPChannel(ch OTPChannel) Option {
	return func(c *config) { c.otp.Channel = ch }
}

func WithOTPPrompt(prompt CodePrompt) Option {
	return func(c *config) { c.otp.Prompt = prompt }
}

// WithBaseURL points the scraper at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// NewScraper prepares a session and loads the cookie file without touching
// the network.
func NewScraper(creds bank.Credentials, opts ...Option) (*Scraper, error) {
	cfg := config{
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := ParseOTPChannel(string(cfg.otp.Channel)); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", bank.ErrUsage, cfg.baseURL, err)
	}

	logger := cfg.logger.With(zap.String("bank", string(bank.BankChase)))

	b := cfg.browser
	if b == nil {
		if b, err = browser.NewHTTPBrowser(browser.WithLogger(logger)); err != nil {
			return nil, err
		}
	}

	s := &Scraper{
		session: &Session{
			browser:    b,
			baseURL:    baseURL,
			creds:      creds,
			cookieFile: cfg.cookieFile,
			otp:        cfg.otp,
			logger:     logger,
			now:        cfg.now,
		},
		logger: logger,
	}

	if err := s.session.LoadCookies(); err != nil {
		_ = b.Close()
		return nil, s.wrap("LoadCookies", err)
	}
	return s, nil
}

// New prepares a session and opens the accounts list, logging in if the
// saved cookies do not carry a live session.
func New(ctx context.Context, creds bank.Credentials, opts ...Option) (*Scraper, error) {
	s, err := NewScraper(creds, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := s.session.Navigate(ctx, s.session.accountsURL()); err != nil {
		_ = s.Close()
		return nil, s.wrap("Open", err)
	}
	return s, nil
}

func (s *Scraper) Session() *Session {
	return s.session
}

// Login logs in with the configured one-time code settings.
func (s *Scraper) Login(ctx context.Context) error {
	return s.LoginWith(ctx, LoginOptions{})
}

func (s *Scraper) LoginWith(ctx context.Context, opts LoginOptions) error {
	if err := s.session.Login(ctx, opts); err != nil {
		return s.wrap("Login", err)
	}
	return nil
}

func (s *Scraper) Close() error {
	return s.session.browser.Close()
}

func (s *Scraper) wrap(operation string, err error) error {
	return s.session.wrap(operation, err)
}

func (s *Session) wrap(operation string, err error) error {
	var se *bank.ScraperError
	if errors.As(err, &se) {
		return err
	}
	return &bank.ScraperError{
		BankCode:  bank.BankChase,
		Operation: operation,
		Cause:     err,
	}
}
