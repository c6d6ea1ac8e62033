package testutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
)

// Recorder is an http.RoundTripper that keeps every exchange it forwards,
// for writing out with SaveHAR.
type Recorder struct {
	next http.RoundTripper

	mu      sync.Mutex
	entries []HAREntry
}

// NewRecorder wraps next; nil means http.DefaultTransport.
func NewRecorder(next http.RoundTripper) *Recorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Recorder{next: next}
}

func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	// 1. Copy the request body, leaving it readable for the transport
	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		if reqBody, err = io.ReadAll(req.Body); err != nil {
			return nil, fmt.Errorf("record request body: %w", err)
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	res, err := r.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// 2. Copy the response body the same way
	resBody, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("record response body: %w", err)
	}
	res.Body = io.NopCloser(bytes.NewReader(resBody))

	entry := HAREntry{
		Request: HARRequest{
			Method:  req.Method,
			URL:     req.URL.String(),
			Headers: harHeaders(req.Header),
			Body:    string(reqBody),
		},
		Response: HARResponse{
			Status:  res.StatusCode,
			Headers: harHeaders(res.Header),
			Content: harContent(res.Header.Get("Content-Type"), resBody),
		},
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	return res, nil
}

// HAR returns the exchanges recorded so far.
func (r *Recorder) HAR() *HARLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]HAREntry, len(r.entries))
	copy(entries, r.entries)
	return &HARLog{Entries: entries}
}

func harHeaders(h http.Header) []HARHeader {
	var out []HARHeader
	for name, values := range h {
		for _, v := range values {
			out = append(out, HARHeader{Name: name, Value: v})
		}
	}
	return out
}

func harContent(contentType string, body []byte) HARContent {
	c := HARContent{MimeType: contentType, Size: len(body)}
	if isTextual(contentType) {
		c.Text = string(body)
	} else {
		c.Text = base64.StdEncoding.EncodeToString(body)
		c.Encoding = "base64"
	}
	return c
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") ||
		strings.HasSuffix(mediaType, "json") ||
		strings.HasSuffix(mediaType, "xml") ||
		mediaType == "application/javascript"
}

func headerValue(headers []HARHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
