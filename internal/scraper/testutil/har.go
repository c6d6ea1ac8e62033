// Package testutil records portal sessions as HAR files, strips secrets from
// them and replays them, either as an HTTP server for the HTTP backend or as
// a Rod hijack handler for the Chrome backend.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"
)

// HARLog is a reduced HAR (HTTP Archive): only what replay needs.
type HARLog struct {
	Entries []HAREntry `json:"entries"`
}

type HAREntry struct {
	Request  HARRequest  `json:"request"`
	Response HARResponse `json:"response"`
}

type HARRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers []HARHeader `json:"headers,omitempty"`
	Body    string      `json:"body,omitempty"`
}

type HARResponse struct {
	Status  int         `json:"status"`
	Headers []HARHeader `json:"headers,omitempty"`
	Content HARContent  `json:"content"`
}

type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HARContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"` // "base64" for binary bodies
	Size     int    `json:"size,omitempty"`
}

// Header returns the first value of the named header, case-insensitively.
func (r HARResponse) Header(name string) string {
	return headerValue(r.Headers, name)
}

// --- CHROME DEVTOOLS EXPORT ---

// DevTools wraps entries in "log" and sends request bodies as postData.
type chromeHAR struct {
	Log struct {
		Entries []struct {
			Request struct {
				Method   string      `json:"method"`
				URL      string      `json:"url"`
				Headers  []HARHeader `json:"headers"`
				PostData *struct {
					Text string `json:"text"`
				} `json:"postData"`
			} `json:"request"`
			Response HARResponse `json:"response"`
		} `json:"entries"`
	} `json:"log"`
}

func (c *chromeHAR) toLog() *HARLog {
	har := &HARLog{Entries: make([]HAREntry, 0, len(c.Log.Entries))}
	for _, ce := range c.Log.Entries {
		req := HARRequest{
			Method:  ce.Request.Method,
			URL:     ce.Request.URL,
			Headers: ce.Request.Headers,
		}
		if ce.Request.PostData != nil {
			req.Body = ce.Request.PostData.Text
		}
		har.Entries = append(har.Entries, HAREntry{Request: req, Response: ce.Response})
	}
	return har
}

// LoadHAR reads a HAR file written by SaveHAR or exported from Chrome
// DevTools.
func LoadHAR(path string) (*HARLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read HAR file: %w", err)
	}

	var chrome chromeHAR
	if err := json.Unmarshal(data, &chrome); err == nil && len(chrome.Log.Entries) > 0 {
		return chrome.toLog(), nil
	}

	var har HARLog
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("parse HAR JSON: %w", err)
	}
	return &har, nil
}

// SaveHAR writes har indented. Recordings hold account data, so the file is
// private to the user.
func SaveHAR(path string, har *HARLog) error {
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal HAR: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write HAR file: %w", err)
	}
	return nil
}

func MustLoadHAR(t *testing.T, path string) *HARLog {
	t.Helper()

	har, err := LoadHAR(path)
	if err != nil {
		t.Fatalf("failed to load HAR file %s: %v", path, err)
	}
	return har
}
