package browser

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	lwpHeader        = "#LWP-Cookies-2.0"
	lwpLinePrefix    = "Set-Cookie3:"
	lwpExpiresLayout = "2006-01-02 15:04:05Z"

	netscapeHeader  = "# Netscape HTTP Cookie File"
	netscapeHeader2 = "# HTTP Cookie File"
	httpOnlyPrefix  = "#HttpOnly_"
)

var ErrCookieFileFormat = errors.New("unrecognized cookie file format")

// SaveCookieFile writes cookies in the LWP (libwww-perl "Set-Cookie3") text
// format. Session cookies are written too, flagged discard, so a later
// process can resume the session; cookies already expired at now are
// dropped.
func SaveCookieFile(path string, cookies []Cookie, now time.Time) error {
	var b strings.Builder
	b.WriteString(lwpHeader + "\n")
	for _, c := range cookies {
		if c.Expired(now) {
			continue
		}
		b.WriteString(lwpLinePrefix + " " + lwpLine(c) + "\n")
	}

	// Replace atomically.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	return nil
}

// LoadCookieFile reads a cookie file in LWP or Netscape format. A missing
// file yields no cookies and no error; every other failure is returned.
// Cookies expired at now are skipped.
func LoadCookieFile(path string, now time.Time) ([]Cookie, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var (
		cookies []Cookie
		parse   func(string) (Cookie, bool, error)
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if parse == nil {
			switch {
			case strings.TrimSpace(line) == "":
				continue
			case strings.HasPrefix(line, lwpHeader):
				parse = parseLWPLine
				continue
			case strings.HasPrefix(line, netscapeHeader), strings.HasPrefix(line, netscapeHeader2):
				parse = parseNetscapeLine
				continue
			default:
				return nil, fmt.Errorf("load cookies: %s: %w", path, ErrCookieFileFormat)
			}
		}

		c, ok, err := parse(line)
		if err != nil {
			return nil, fmt.Errorf("load cookies: %s:%d: %w", path, lineNo, err)
		}
		if !ok || c.Expired(now) {
			continue
		}
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	if parse == nil && lineNo > 0 {
		return nil, fmt.Errorf("load cookies: %s: %w", path, ErrCookieFileFormat)
	}

	return cookies, nil
}

// --- LWP ---

var lwpToken = regexp.MustCompile(`^\w+$`)

func lwpQuote(s string) string {
	if lwpToken.MatchString(s) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func lwpLine(c Cookie) string {
	parts := []string{
		c.Name + "=" + lwpQuote(c.Value),
		"path=" + lwpQuote(c.Path),
		"domain=" + lwpQuote(c.Domain),
		"path_spec",
	}
	if !c.HostOnly() {
		parts = append(parts, "domain_dot")
	}
	if c.Secure {
		parts = append(parts, "secure")
	}
	if c.Session() {
		parts = append(parts, "discard")
	} else {
		parts = append(parts, "expires="+lwpQuote(c.Expires.UTC().Format(lwpExpiresLayout)))
	}
	if c.HttpOnly {
		parts = append(parts, "HttpOnly=None")
	}
	parts = append(parts, "version=0")
	return strings.Join(parts, "; ")
}

type headerWord struct {
	key      string
	value    string
	hasValue bool
}

func parseLWPLine(line string) (Cookie, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Cookie{}, false, nil
	}
	if !strings.HasPrefix(line, lwpLinePrefix) {
		return Cookie{}, false, fmt.Errorf("%w: missing %s", ErrCookieFileFormat, lwpLinePrefix)
	}

	words, err := splitHeaderWords(strings.TrimSpace(strings.TrimPrefix(line, lwpLinePrefix)))
	if err != nil {
		return Cookie{}, false, err
	}
	if len(words) == 0 || !words[0].hasValue {
		return Cookie{}, false, fmt.Errorf("%w: cookie without name", ErrCookieFileFormat)
	}

	c := Cookie{Name: words[0].key, Value: words[0].value, Path: "/"}
	for _, w := range words[1:] {
		switch strings.ToLower(w.key) {
		case "path":
			c.Path = w.value
		case "domain":
			c.Domain = w.value
		case "secure":
			c.Secure = true
		case "httponly":
			c.HttpOnly = true
		case "expires":
			t, err := time.Parse(lwpExpiresLayout, w.value)
			if err != nil {
				return Cookie{}, false, fmt.Errorf("%w: expires %q", ErrCookieFileFormat, w.value)
			}
			c.Expires = t
		}
	}
	return c, true, nil
}

// splitHeaderWords parses `a="x"; b=y; flag` into key/value pairs,
// honouring quoted strings with backslash escapes.
func splitHeaderWords(s string) ([]headerWord, error) {
	var words []headerWord
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == ';' || s[i] == ',') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ';' {
			i++
		}
		w := headerWord{key: strings.TrimSpace(s[start:i])}

		if i < len(s) && s[i] == '=' {
			i++
			w.hasValue = true
			if i < len(s) && s[i] == '"' {
				i++
				var v strings.Builder
				closed := false
				for i < len(s) {
					ch := s[i]
					if ch == '\\' && i+1 < len(s) {
						v.WriteByte(s[i+1])
						i += 2
						continue
					}
					if ch == '"' {
						closed = true
						i++
						break
					}
					v.WriteByte(ch)
					i++
				}
				if !closed {
					return nil, fmt.Errorf("%w: unterminated quote", ErrCookieFileFormat)
				}
				w.value = v.String()
			} else {
				start = i
				for i < len(s) && s[i] != ';' {
					i++
				}
				w.value = strings.TrimSpace(s[start:i])
			}
		}
		words = append(words, w)
	}
	return words, nil
}

// --- NETSCAPE ---

func parseNetscapeLine(line string) (Cookie, bool, error) {
	httpOnly := false
	if strings.HasPrefix(line, httpOnlyPrefix) {
		httpOnly = true
		line = strings.TrimPrefix(line, httpOnlyPrefix)
	}
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return Cookie{}, false, nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return Cookie{}, false, fmt.Errorf("%w: want 7 tab-separated fields, got %d", ErrCookieFileFormat, len(fields))
	}

	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Cookie{}, false, fmt.Errorf("%w: expires %q", ErrCookieFileFormat, fields[4])
	}

	c := Cookie{
		Domain:   fields[0],
		Path:     fields[2],
		Secure:   strings.EqualFold(fields[3], "TRUE"),
		Name:     fields[5],
		Value:    fields[6],
		HttpOnly: httpOnly,
	}
	if strings.EqualFold(fields[1], "TRUE") && !strings.HasPrefix(c.Domain, ".") {
		c.Domain = "." + c.Domain
	}
	if expires > 0 {
		c.Expires = time.Unix(expires, 0).UTC()
	}
	return c, true, nil
}
