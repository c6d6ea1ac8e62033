package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// RodBrowser drives a real Chrome through Rod with the stealth evasions
// loaded. Every document response is rewritten to drop meta refresh tags
// before Chrome sees it.
type RodBrowser struct {
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter
	logger  *zap.Logger

	hijacker func(*rod.Hijack)
}

type rodConfig struct {
	headless  bool
	userAgent string
	hijacker  func(*rod.Hijack)
	logger    *zap.Logger
}

type RodOption func(*rodConfig)

func WithHeadless(headless bool) RodOption {
	return func(c *rodConfig) { c.headless = headless }
}

func WithRodUserAgent(ua string) RodOption {
	return func(c *rodConfig) { c.userAgent = ua }
}

// WithHijacker serves document requests from h instead of the network, e.g.
// a HAR replayer.
func WithHijacker(h func(*rod.Hijack)) RodOption {
	return func(c *rodConfig) { c.hijacker = h }
}

func WithRodLogger(logger *zap.Logger) RodOption {
	return func(c *rodConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewRodBrowser(opts ...RodOption) (*RodBrowser, error) {
	cfg := rodConfig{
		headless: true,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// 1. Launch Chrome
	controlURL, err := launcher.New().Headless(cfg.headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	// 2. Open a page with the stealth evasions injected
	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	if cfg.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.userAgent}); err != nil {
			_ = browser.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	b := &RodBrowser{
		browser:  browser,
		page:     page,
		logger:   cfg.logger,
		hijacker: cfg.hijacker,
	}

	// 3. Route every document through the meta refresh filter
	b.router = browser.HijackRequests()
	if err := b.router.Add("*", proto.NetworkResourceTypeDocument, b.serveDocument); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("hijack documents: %w", err)
	}
	go b.router.Run()

	return b, nil
}

func (b *RodBrowser) Get(ctx context.Context, rawURL string) (*Page, error) {
	b.logger.Debug("GET", zap.String("url", rawURL), zap.String("backend", "rod"))

	page := b.page.Context(ctx)
	if err := page.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("GET %s: wait load: %w", rawURL, err)
	}
	return b.snapshot(page)
}

// postFormJS builds a throwaway form in the current document and submits
// it, so the POST carries the browser's own cookies and referrer.
const postFormJS = `(action, fields) => {
	const form = document.createElement('form');
	form.method = 'POST';
	form.action = action;
	for (const [name, values] of Object.entries(fields)) {
		for (const value of values) {
			const input = document.createElement('input');
			input.type = 'hidden';
			input.name = name;
			input.value = value;
			form.appendChild(input);
		}
	}
	document.body.appendChild(form);
	HTMLFormElement.prototype.submit.call(form);
}`

func (b *RodBrowser) Post(ctx context.Context, rawURL string, form url.Values) (*Page, error) {
	b.logger.Debug("POST", zap.String("url", rawURL), zap.String("backend", "rod"))

	page := b.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if _, err := page.Eval(postFormJS, rawURL, map[string][]string(form)); err != nil {
		return nil, fmt.Errorf("POST %s: %w", rawURL, err)
	}
	wait()

	return b.snapshot(page)
}

func (b *RodBrowser) snapshot(page *rod.Page) (*Page, error) {
	content, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("read page info: %w", err)
	}
	pageURL, err := url.Parse(info.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", info.URL, err)
	}

	// CDP does not surface the document status through the page; a failed
	// document load already errors out of Navigate.
	return NewPage(pageURL, http.StatusOK, content)
}

func (b *RodBrowser) Cookies() ([]Cookie, error) {
	raw, err := b.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, rc := range raw {
		c := Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Secure:   rc.Secure,
			HttpOnly: rc.HTTPOnly,
		}
		if !rc.Session {
			c.Expires = rc.Expires.Time()
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

func (b *RodBrowser) SetCookies(cookies []Cookie) error {
	now := time.Now()
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Expired(now) {
			continue
		}

		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if c.HostOnly() {
			p.URL = scheme + "://" + c.Domain + c.Path
		} else {
			p.Domain = c.Domain
		}
		if !c.Session() {
			p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, p)
	}

	if err := b.browser.SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

func (b *RodBrowser) Close() error {
	if b.router != nil {
		_ = b.router.Stop()
	}
	return b.browser.Close()
}

// --- DOCUMENT HIJACKING ---

var metaRefresh = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']?refresh["']?[^>]*>`)

// StripMetaRefresh removes every <meta http-equiv="refresh"> tag.
func StripMetaRefresh(content string) string {
	return metaRefresh.ReplaceAllString(content, "")
}

// noRedirectClient hands redirects back to Chrome so the page URL tracks the
// redirect chain.
var noRedirectClient = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func (b *RodBrowser) serveDocument(h *rod.Hijack) {
	if b.hijacker != nil {
		b.hijacker(h)
	} else {
		b.attachCookies(h)
		if err := h.LoadResponse(noRedirectClient, true); err != nil {
			b.logger.Warn("load document", zap.String("url", h.Request.URL().String()), zap.Error(err))
			h.Response.Fail(proto.NetworkErrorReasonFailed)
			return
		}
	}

	body := h.Response.Body()
	if stripped := StripMetaRefresh(body); stripped != body {
		b.logger.Debug("stripped meta refresh", zap.String("url", h.Request.URL().String()))
		h.Response.SetBody(stripped)
	}
}

// attachCookies copies the browser's cookies for the request URL onto the
// out-of-browser request LoadResponse sends.
func (b *RodBrowser) attachCookies(h *rod.Hijack) {
	req := h.Request.Req()
	if req.Header.Get("Cookie") != "" {
		return
	}

	cookies, err := b.Cookies()
	if err != nil {
		b.logger.Warn("read cookies for hijacked request", zap.Error(err))
		return
	}

	host := req.URL.Hostname()
	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		matches := host == domain || (!c.HostOnly() && strings.HasSuffix(host, "."+domain))
		if !matches || !strings.HasPrefix(req.URL.Path, c.Path) {
			continue
		}
		if c.Secure && req.URL.Scheme != "https" {
			continue
		}
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}
