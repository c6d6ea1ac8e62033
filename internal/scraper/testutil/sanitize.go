package testutil

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKey matches form fields, query parameters, JSON keys and header
// names whose values must not be committed.
var sensitiveKey = regexp.MustCompile(`(?i)` + strings.Join([]string{
	// credentials
	`password`, `passwd`, `secret`, `credential`, `userid`, `user_id`,
	// one-time codes
	`otp`,
	// tokens and sessions
	`token`, `session`, `sess_`, `auth`, `jwt`, `bearer`, `csrf`,
	// keys
	`api_?key`, `access_key`, `private_key`,
}, "|"))

// SensitiveHeaders are redacted whatever their value looks like.
var SensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-auth-token":        true,
	"x-api-key":           true,
	"x-access-token":      true,
	"x-session-id":        true,
	"x-csrf-token":        true,
	"x-xsrf-token":        true,
	"proxy-authorization": true,
}

var (
	jsonStringField = regexp.MustCompile(`"([^"]+)"\s*:\s*"[^"]*"`)
	jsonOtherField  = regexp.MustCompile(`"([^"]+)"\s*:\s*([^",{}\[\]\s][^,}\]]*)`)
)

// SanitizeHAR returns a copy of har with secrets replaced by [REDACTED].
func SanitizeHAR(har *HARLog) *HARLog {
	sanitized := &HARLog{Entries: make([]HAREntry, len(har.Entries))}
	for i, entry := range har.Entries {
		sanitized.Entries[i] = HAREntry{
			Request:  sanitizeRequest(entry.Request),
			Response: sanitizeResponse(entry.Response),
		}
	}
	return sanitized
}

func sanitizeRequest(req HARRequest) HARRequest {
	return HARRequest{
		Method:  req.Method,
		URL:     sanitizeURL(req.URL),
		Headers: sanitizeHeaders(req.Headers),
		Body:    sanitizeBody(req.Body),
	}
}

func sanitizeResponse(resp HARResponse) HARResponse {
	content := resp.Content
	if content.Encoding != "base64" {
		content.Text, _ = SanitizeHTML(sanitizeBody(content.Text))
	}
	return HARResponse{
		Status:  resp.Status,
		Headers: sanitizeHeaders(resp.Headers),
		Content: content,
	}
}

func sanitizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.RawQuery == "" {
		return rawURL
	}

	query := parsed.Query()
	for key := range query {
		if isSensitiveKey(key) {
			query.Set(key, redacted)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func sanitizeHeaders(headers []HARHeader) []HARHeader {
	if headers == nil {
		return nil
	}
	sanitized := make([]HARHeader, len(headers))
	for i, h := range headers {
		sanitized[i] = h
		if SensitiveHeaders[strings.ToLower(h.Name)] || isSensitiveKey(h.Name) {
			sanitized[i].Value = redacted
		}
	}
	return sanitized
}

func sanitizeBody(body string) string {
	trimmed := strings.TrimSpace(body)
	switch {
	case trimmed == "":
		return body
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return sanitizeJSONBody(body)
	case strings.HasPrefix(trimmed, "<"):
		return body
	case strings.Contains(body, "="):
		return sanitizeFormBody(body)
	default:
		return body
	}
}

func sanitizeFormBody(body string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}

	changed := false
	for key := range values {
		if isSensitiveKey(key) {
			values.Set(key, redacted)
			changed = true
		}
	}
	if !changed {
		return body
	}
	return values.Encode()
}

func sanitizeJSONBody(body string) string {
	redact := func(re *regexp.Regexp) func(string) string {
		return func(field string) string {
			key := re.FindStringSubmatch(field)[1]
			if !isSensitiveKey(key) {
				return field
			}
			return `"` + key + `": "` + redacted + `"`
		}
	}
	body = jsonStringField.ReplaceAllStringFunc(body, redact(jsonStringField))
	return jsonOtherField.ReplaceAllStringFunc(body, redact(jsonOtherField))
}

func isSensitiveKey(key string) bool {
	return sensitiveKey.MatchString(key)
}

// --- HTML FIXTURES ---

type htmlPattern struct {
	re          *regexp.Regexp
	replacement string
	description string
}

var htmlPatterns = []htmlPattern{
	{
		regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		"user@example.com",
		"Email address",
	},
	{
		regexp.MustCompile(`\(?\b\d{3}\)?[-. ]\d{3}[-. ]\d{4}\b`),
		"(555) 555-0100",
		"Phone number",
	},
	{
		regexp.MustCompile(`(?i)\b(token|csrf|session)\s*[:=]\s*["']?[A-Za-z0-9_-]{20,}["']?`),
		`$1="REDACTED"`,
		"Token",
	},
	{
		regexp.MustCompile(`(?i)document\.cookie\s*=\s*["'][^"']+["']`),
		`document.cookie="REDACTED"`,
		"Cookie",
	},
}

// SanitizeHTML scrubs contact details and tokens from a saved page. It
// returns the cleaned page and one description per kind of data found.
// Account numbers are not touched: the portal only ever shows the last four
// digits and account names depend on them.
func SanitizeHTML(content string) (string, []string) {
	var found []string
	for _, p := range htmlPatterns {
		if !p.re.MatchString(content) {
			continue
		}
		found = append(found, p.description)
		content = p.re.ReplaceAllString(content, p.replacement)
	}
	return content, found
}
