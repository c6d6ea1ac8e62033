package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "chase-scraper/Go (+https://github.com/grez-lucas/chase-scraper)"
	DefaultTimeout   = 30 * time.Second

	maxRedirects = 10
)

// HTTPBrowser drives a site with plain HTTP requests. It has no JavaScript
// and does not act on meta refreshes, which keeps a server-scheduled
// auto-logout from ever firing.
type HTTPBrowser struct {
	client *resty.Client
	jar    *Jar
	logger *zap.Logger
}

type httpConfig struct {
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *zap.Logger
}

type HTTPOption func(*httpConfig)

func WithUserAgent(ua string) HTTPOption {
	return func(c *httpConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) HTTPOption {
	return func(c *httpConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport sends requests through rt, e.g. a HAR recorder.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(c *httpConfig) { c.transport = rt }
}

func WithLogger(logger *zap.Logger) HTTPOption {
	return func(c *httpConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewHTTPBrowser(opts ...HTTPOption) (*HTTPBrowser, error) {
	cfg := httpConfig{
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	jar, err := NewJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", cfg.userAgent)
	client.SetTimeout(cfg.timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	client.SetLogger(cfg.logger.Sugar())
	if cfg.transport != nil {
		client.SetTransport(cfg.transport)
	}

	return &HTTPBrowser{
		client: client,
		jar:    jar,
		logger: cfg.logger,
	}, nil
}

func (b *HTTPBrowser) Get(ctx context.Context, rawURL string) (*Page, error) {
	b.logger.Debug("GET", zap.String("url", rawURL))

	res, err := b.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return pageFromResponse(res)
}

func (b *HTTPBrowser) Post(ctx context.Context, rawURL string, form url.Values) (*Page, error) {
	b.logger.Debug("POST", zap.String("url", rawURL), zap.Int("fields", len(form)))

	res, err := b.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(rawURL)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rawURL, err)
	}
	return pageFromResponse(res)
}

func (b *HTTPBrowser) Cookies() ([]Cookie, error) {
	return b.jar.All(), nil
}

func (b *HTTPBrowser) SetCookies(cookies []Cookie) error {
	b.jar.Restore(cookies)
	return nil
}

func (b *HTTPBrowser) Close() error {
	return nil
}

// pageFromResponse builds a Page located at the URL of the last request in
// the redirect chain.
func pageFromResponse(res *resty.Response) (*Page, error) {
	var finalURL *url.URL
	switch {
	case res.RawResponse != nil && res.RawResponse.Request != nil:
		finalURL = res.RawResponse.Request.URL
	case res.Request != nil && res.Request.RawRequest != nil:
		finalURL = res.Request.RawRequest.URL
	default:
		return nil, fmt.Errorf("response without request URL")
	}

	return NewPage(finalURL, res.StatusCode(), string(res.Body()))
}
