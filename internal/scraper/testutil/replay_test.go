package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(method, rawURL string, status int, body string, headers ...HARHeader) HAREntry {
	return HAREntry{
		Request: HARRequest{Method: method, URL: rawURL},
		Response: HARResponse{
			Status:  status,
			Headers: headers,
			Content: HARContent{MimeType: "text/html", Text: body},
		},
	}
}

func TestReplayer_Lookup(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("GET", "https://portal.test/Secure/Accounts/", 200, "login page"),
		entry("GET", "https://portal.test/Secure/Accounts/", 200, "accounts"),
		entry("GET", "https://portal.test/Details/D1?page=2", 200, "page two"),
		entry("POST", "https://portal.test/Public/Home/LogOn", 302, ""),
	}})

	next := func(method, rawURL string) string {
		u, err := url.Parse(rawURL)
		require.NoError(t, err)
		e, ok := r.lookup(method, u)
		if !ok {
			return "<none>"
		}
		return e.Response.Content.Text
	}

	// repeated recordings play in order, then the last one sticks
	assert.Equal(t, "login page", next("GET", "http://127.0.0.1:1234/Secure/Accounts/"))
	assert.Equal(t, "accounts", next("GET", "http://127.0.0.1:1234/Secure/Accounts/"))
	assert.Equal(t, "accounts", next("GET", "http://127.0.0.1:1234/Secure/Accounts/"))

	assert.Equal(t, "page two", next("GET", "http://x/Details/D1?page=2"))
	assert.Equal(t, "page two", next("GET", "http://x/Details/D1?page=9"), "falls back to the path")
	assert.Equal(t, "<none>", next("POST", "http://x/Details/D1?page=2"), "method must match")
	assert.Equal(t, "<none>", next("GET", "http://x/Nowhere"))
	assert.Equal(t, "", next("post", "http://x/Public/Home/LogOn"), "method case is ignored")

	stats := r.Stats()
	assert.Equal(t, 3, stats["exact_matches"])
	assert.Equal(t, 3, stats["path_matches"])
}

func TestReplayer_ServeHTTP(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("POST", "https://portal.test/login", 302, "",
			HARHeader{Name: "Location", Value: "https://portal.test/home?x=1"},
			HARHeader{Name: "Set-Cookie", Value: "SESSION=abc; Domain=.portal.test; Path=/; Secure; HttpOnly"},
			HARHeader{Name: "Content-Length", Value: "999"},
		),
		entry("GET", "https://portal.test/home?x=1", 200, "<p>home</p>"),
	}})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	res, err := client.PostForm(srv.URL+"/login", url.Values{"user": {"jdoe"}})
	require.NoError(t, err)
	_ = res.Body.Close()

	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/home?x=1", res.Header.Get("Location"))
	assert.Equal(t, "SESSION=abc; Path=/; HttpOnly", res.Header.Get("Set-Cookie"))
	require.Len(t, res.Cookies(), 1)

	res, err = client.Get(srv.URL + "/home?x=1")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "<p>home</p>", string(body))
	assert.Equal(t, "text/html", res.Header.Get("Content-Type"))

	res, err = client.Get(srv.URL + "/elsewhere")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestReplayer_FollowRedirects(t *testing.T) {
	r := NewReplayer(&HARLog{Entries: []HAREntry{
		entry("GET", "https://portal.test/a", 302, "", HARHeader{Name: "Location", Value: "/b"}),
		entry("GET", "https://portal.test/b", 301, "", HARHeader{Name: "Location", Value: "https://portal.test/c"}),
		entry("GET", "https://portal.test/c", 200, "end"),
		entry("GET", "https://portal.test/loop", 302, "", HARHeader{Name: "Location", Value: "/missing"}),
	}})

	base, err := url.Parse("https://portal.test/a")
	require.NoError(t, err)
	start, _ := r.lookup("GET", base)
	assert.Equal(t, "end", r.followRedirects(start, base).Response.Content.Text)

	base, err = url.Parse("https://portal.test/loop")
	require.NoError(t, err)
	start, _ = r.lookup("GET", base)
	assert.Equal(t, 302, r.followRedirects(start, base).Response.Status, "an unrecorded target stops the chain")
}
