package testutil

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const maxRedirects = 10

// Replayer serves recorded responses. Requests match on method and path
// plus query, ignoring the host, then on method and path alone. When a URL
// was recorded several times the recordings are served in order and the
// last one repeats, so a session that first sees the login page and later
// the logged in page replays the same way.
type Replayer struct {
	exact map[string][]*HAREntry
	paths map[string][]*HAREntry

	mu     sync.Mutex
	served map[string]int

	logger *zap.Logger
}

type ReplayerOption func(*Replayer)

func WithLogger(logger *zap.Logger) ReplayerOption {
	return func(r *Replayer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewReplayer(har *HARLog, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		exact:  make(map[string][]*HAREntry),
		paths:  make(map[string][]*HAREntry),
		served: make(map[string]int),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for i := range har.Entries {
		entry := &har.Entries[i]
		u, err := url.Parse(entry.Request.URL)
		if err != nil {
			continue
		}
		method := methodOrGet(entry.Request.Method)
		r.exact[exactKey(method, u)] = append(r.exact[exactKey(method, u)], entry)
		r.paths[pathKey(method, u)] = append(r.paths[pathKey(method, u)], entry)
	}
	return r
}

func methodOrGet(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

func exactKey(method string, u *url.URL) string {
	return method + " " + u.RequestURI()
}

func pathKey(method string, u *url.URL) string {
	return method + " " + u.EscapedPath()
}

// lookup returns the next recording for the request, advancing the
// per-key cursor.
func (r *Replayer) lookup(method string, u *url.URL) (*HAREntry, bool) {
	method = methodOrGet(method)

	key, entries := exactKey(method, u), r.exact[exactKey(method, u)]
	if len(entries) == 0 {
		key, entries = "path:"+pathKey(method, u), r.paths[pathKey(method, u)]
	}
	if len(entries) == 0 {
		return nil, false
	}

	r.mu.Lock()
	n := r.served[key]
	r.served[key] = n + 1
	r.mu.Unlock()

	if n >= len(entries) {
		n = len(entries) - 1
	}
	return entries[n], true
}

// Stats reports how many distinct URLs were indexed.
func (r *Replayer) Stats() map[string]int {
	return map[string]int{
		"exact_matches": len(r.exact),
		"path_matches":  len(r.paths),
	}
}

// --- HTTP SERVER ---

// ServeHTTP replays as a web server, for the HTTP backend pointed at an
// httptest.Server. Redirects and cookies are rewritten to stay on the
// replay host.
func (r *Replayer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	entry, ok := r.lookup(req.Method, req.URL)
	if !ok {
		r.logger.Debug("replay: no recording", zap.String("method", req.Method), zap.String("url", req.URL.String()))
		http.Error(w, "no recording found for URL", http.StatusNotFound)
		return
	}
	r.logger.Debug("replay: matched", zap.String("url", req.URL.String()), zap.Int("status", entry.Response.Status))

	resp := entry.Response
	for _, h := range resp.Headers {
		switch strings.ToLower(h.Name) {
		case "content-length", "content-encoding", "transfer-encoding":
			continue
		case "location":
			w.Header().Add(h.Name, localLocation(h.Value))
		case "set-cookie":
			w.Header().Add(h.Name, localCookie(h.Value))
		default:
			w.Header().Add(h.Name, h.Value)
		}
	}
	if w.Header().Get("Content-Type") == "" && resp.Content.MimeType != "" {
		w.Header().Set("Content-Type", resp.Content.MimeType)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(decodeBody(resp.Content))
}

// localLocation drops the recorded host so redirects come back here.
func localLocation(loc string) string {
	u, err := url.Parse(loc)
	if err != nil || !u.IsAbs() {
		return loc
	}
	return u.RequestURI()
}

// localCookie drops the Domain and Secure attributes so the cookie sticks
// to a plain http://127.0.0.1 server.
func localCookie(v string) string {
	parts := strings.Split(v, ";")
	kept := parts[:1]
	for _, p := range parts[1:] {
		attr := strings.ToLower(strings.TrimSpace(p))
		if strings.HasPrefix(attr, "domain=") || attr == "secure" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ";")
}

func decodeBody(c HARContent) []byte {
	if c.Encoding == "base64" {
		if body, err := base64.StdEncoding.DecodeString(c.Text); err == nil {
			return body
		}
	}
	return []byte(c.Text)
}

// --- ROD HIJACK ---

// Middleware returns a Rod hijack handler serving recorded responses, for
// browser.WithHijacker. Chrome cannot be handed a redirect from a hijacked
// document, so redirect chains are followed inside the recording.
func (r *Replayer) Middleware() func(*rod.Hijack) {
	return func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL()

		entry, found := r.lookup(ctx.Request.Method(), reqURL)
		if !found {
			r.logger.Debug("replay: no recording", zap.String("url", reqURL.String()))
			serveNotFound(ctx)
			return
		}

		entry = r.followRedirects(entry, reqURL)
		resp := entry.Response

		var headers []*proto.FetchHeaderEntry
		for _, h := range resp.Headers {
			switch strings.ToLower(h.Name) {
			case "content-encoding", "content-length", "location":
				continue
			}
			headers = append(headers, &proto.FetchHeaderEntry{Name: h.Name, Value: h.Value})
		}
		if resp.Header("Content-Type") == "" && resp.Content.MimeType != "" {
			headers = append(headers, &proto.FetchHeaderEntry{Name: "Content-Type", Value: resp.Content.MimeType})
		}

		payload := ctx.Response.Payload()
		payload.ResponseCode = resp.Status
		payload.ResponseHeaders = headers
		payload.Body = decodeBody(resp.Content)
	}
}

func (r *Replayer) followRedirects(entry *HAREntry, base *url.URL) *HAREntry {
	current := entry
	for range maxRedirects {
		if current.Response.Status < 300 || current.Response.Status >= 400 {
			return current
		}
		loc, err := url.Parse(current.Response.Header("Location"))
		if err != nil || loc.String() == "" {
			return current
		}
		target := base.ResolveReference(loc)

		next, found := r.lookup(http.MethodGet, target)
		if !found {
			r.logger.Debug("replay: redirect target not recorded", zap.String("url", target.String()))
			return current
		}
		base, current = target, next
	}
	return current
}

func serveNotFound(ctx *rod.Hijack) {
	payload := ctx.Response.Payload()
	payload.ResponseCode = http.StatusNotFound
	payload.ResponseHeaders = []*proto.FetchHeaderEntry{
		{Name: "Content-Type", Value: "text/plain; charset=utf-8"},
	}
	payload.Body = []byte("no recording found for URL")
}
