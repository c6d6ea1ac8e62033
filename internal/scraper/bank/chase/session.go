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

// Session owns the browser, the credentials and the cookie file. It is not
// safe for concurrent use; one session drives one workflow at a time.
type Session struct {
	browser    browser.Browser
	baseURL    *url.URL
	creds      bank.Credentials
	cookieFile string
	otp        LoginOptions
	logger     *zap.Logger
	now        func() time.Time
}

func (s *Session) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return s.baseURL.ResolveReference(ref).String()
}

func (s *Session) loginURL() string {
	return s.resolve(PathLogOn)
}

func (s *Session) accountsURL() string {
	return s.resolve(PathAccounts)
}

// Navigate fetches rawURL. When the portal answers with the login form the
// session logs in and fetches rawURL again. Cookies are saved and the page
// is checked for a coaching banner before it is returned.
func (s *Session) Navigate(ctx context.Context, rawURL string) (*browser.Page, error) {
	// 1. Fetch
	page, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	// 2. Session expired: log in and fetch again
	if isLoginPage(page) {
		s.logger.Info("session expired, logging in", zap.String("url", rawURL))
		if err := s.Login(ctx, s.otp); err != nil {
			return nil, err
		}
		if page, err = s.fetch(ctx, rawURL); err != nil {
			return nil, err
		}
		if isLoginPage(page) {
			s.logger.Warn("still on the login page after logging in", zap.String("url", rawURL))
		}
	}

	// 3. Persist cookies, then surface any in-page error
	if err := s.SaveCookies(); err != nil {
		return nil, err
	}
	if err := CheckPage(page); err != nil {
		return nil, err
	}

	return page, nil
}

// Submit sends form as if button were clicked, then saves cookies and checks
// the result for a coaching banner.
func (s *Session) Submit(ctx context.Context, form *browser.Form, button string) (*browser.Page, error) {
	page, err := s.submit(ctx, form, button)
	if err != nil {
		return nil, err
	}

	if err := s.SaveCookies(); err != nil {
		return nil, err
	}
	if err := CheckPage(page); err != nil {
		return nil, err
	}
	return page, nil
}

// fetch is a GET with the status check only.
func (s *Session) fetch(ctx context.Context, rawURL string) (*browser.Page, error) {
	page, err := s.browser.Get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bank.ErrRequestFailed, err)
	}
	if err := checkStatus(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Session) submit(ctx context.Context, form *browser.Form, button string) (*browser.Page, error) {
	s.logger.Debug("submitting form",
		zap.String("action", form.Action),
		zap.String("button", button),
	)

	page, err := browser.Submit(ctx, s.browser, form, button)
	if errors.Is(err, browser.ErrControlNotFound) {
		return nil, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: submit %s: %w", bank.ErrRequestFailed, form.Action, err)
	}
	if err := checkStatus(page); err != nil {
		return nil, err
	}
	return page, nil
}

func isLoginPage(page *browser.Page) bool {
	return page.HasElement(SelectorLoginForm)
}

// --- COOKIES ---

// LoadCookies restores the cookie file into the browser. A missing file is
// not an error.
func (s *Session) LoadCookies() error {
	if s.cookieFile == "" {
		return nil
	}

	cookies, err := browser.LoadCookieFile(s.cookieFile, s.now())
	if err != nil {
		return err
	}
	if err := s.browser.SetCookies(cookies); err != nil {
		return err
	}

	s.logger.Debug("loaded cookies", zap.String("file", s.cookieFile), zap.Int("count", len(cookies)))
	return nil
}

// SaveCookies writes every live cookie, session cookies included, so a later
// process can resume the session.
func (s *Session) SaveCookies() error {
	if s.cookieFile == "" {
		return nil
	}

	cookies, err := s.browser.Cookies()
	if err != nil {
		return err
	}
	return browser.SaveCookieFile(s.cookieFile, cookies, s.now())
}
