package browser

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Cookie is the backend-neutral form of a stored cookie.
//
// Domain starts with a dot for domain cookies and is a bare host for
// host-only cookies. A zero Expires marks a session cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HttpOnly bool
	Expires  time.Time
}

func (c Cookie) Session() bool {
	return c.Expires.IsZero()
}

func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c Cookie) HostOnly() bool {
	return !strings.HasPrefix(c.Domain, ".")
}

func (c Cookie) key() string {
	return c.Domain + ";" + c.Path + ";" + c.Name
}

// Jar is an http.CookieJar that also remembers every cookie it accepted, so
// the whole jar can be written to disk. Matching is delegated to
// net/http/cookiejar.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	entries map[string]Cookie
	now     func() time.Time
}

func NewJar() (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Jar{
		inner:   inner,
		entries: make(map[string]Cookie),
		now:     time.Now,
	}, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, hc := range cookies {
		c := Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Path:     hc.Path,
			Secure:   hc.Secure,
			HttpOnly: hc.HttpOnly,
		}
		domain, ok := cookieDomain(strings.ToLower(u.Hostname()), hc.Domain)
		if !ok {
			continue
		}
		c.Domain = domain
		if c.Path == "" || !strings.HasPrefix(c.Path, "/") {
			c.Path = defaultPath(u.Path)
		}

		switch {
		case hc.MaxAge < 0:
			c.Expires = now
		case hc.MaxAge > 0:
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		case !hc.Expires.IsZero():
			c.Expires = hc.Expires
		}

		if c.Expired(now) {
			delete(j.entries, c.key())
		} else {
			j.entries[c.key()] = c
		}
	}

	j.inner.SetCookies(u, cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// All returns the live cookies, sorted for stable output.
func (j *Jar) All() []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]Cookie, 0, len(j.entries))
	for key, c := range j.entries {
		if c.Expired(now) {
			delete(j.entries, key)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].key() < out[b].key() })
	return out
}

// Restore loads previously saved cookies. Expired cookies are skipped.
func (j *Jar) Restore(cookies []Cookie) {
	now := j.now()
	for _, c := range cookies {
		if c.Expired(now) {
			continue
		}

		host := strings.TrimPrefix(c.Domain, ".")
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: host, Path: c.Path}

		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			Expires:  c.Expires,
		}
		if !c.HostOnly() {
			hc.Domain = host
		}

		j.SetCookies(u, []*http.Cookie{hc})
	}
}

// cookieDomain returns the Cookie.Domain a Set-Cookie from host is stored
// under, and false when the cookie jar would reject its Domain attribute.
func cookieDomain(host, attr string) (string, bool) {
	if attr == "" {
		return host, true
	}
	domain := strings.TrimPrefix(strings.ToLower(attr), ".")
	if domain == "" || strings.HasSuffix(domain, ".") {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return host, domain == host
	}

	// A public suffix may only name the host itself, which makes the
	// cookie host-only.
	if ps, _ := publicsuffix.PublicSuffix(domain); ps == domain {
		return host, domain == host
	}

	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return "", false
	}
	return "." + domain, true
}

// defaultPath implements the default-path algorithm of RFC 6265 section
// 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
