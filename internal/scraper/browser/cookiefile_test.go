package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestCookieFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.lwp")

	cookies := []Cookie{
		{Name: "SESSION", Value: "abc123", Domain: "mobilebanking.chase.com", Path: "/", Secure: true, HttpOnly: true},
		{Name: "pref", Value: `a "quoted"; value`, Domain: ".chase.com", Path: "/Secure", Expires: fixedNow.Add(24 * time.Hour)},
		{Name: "old", Value: "gone", Domain: ".chase.com", Path: "/", Expires: fixedNow.Add(-time.Hour)},
	}

	require.NoError(t, SaveCookieFile(path, cookies, fixedNow))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#LWP-Cookies-2.0\n")
	assert.Contains(t, string(data), `Set-Cookie3: SESSION=abc123; path="/"; domain="mobilebanking.chase.com"; path_spec; secure; discard; HttpOnly=None; version=0`)
	assert.Contains(t, string(data), `expires="2026-03-15 12:00:00Z"`)
	assert.NotContains(t, string(data), "gone")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadCookieFile(path, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, cookies[:2], loaded)
}

func TestLoadCookieFile_Missing(t *testing.T) {
	cookies, err := LoadCookieFile(filepath.Join(t.TempDir(), "nope.lwp"), fixedNow)

	assert.NoError(t, err)
	assert.Nil(t, cookies)
}

func TestLoadCookieFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown header", "SESSION=abc\n"},
		{"lwp bad line", "#LWP-Cookies-2.0\nSESSION=abc\n"},
		{"lwp unterminated quote", "#LWP-Cookies-2.0\nSet-Cookie3: SESSION=\"abc\n"},
		{"lwp bad expiry", "#LWP-Cookies-2.0\nSet-Cookie3: SESSION=abc; expires=\"tomorrow\"\n"},
		{"netscape short line", "# Netscape HTTP Cookie File\n.chase.com\tTRUE\t/\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cookies")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			_, err := LoadCookieFile(path, fixedNow)
			assert.ErrorIs(t, err, ErrCookieFileFormat)
		})
	}
}

func TestLoadCookieFile_Directory(t *testing.T) {
	_, err := LoadCookieFile(t.TempDir(), fixedNow)

	assert.Error(t, err)
}

func TestLoadCookieFile_Netscape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		"# comment\n" +
		"\n" +
		"chase.com\tTRUE\t/\tTRUE\t1900000000\tpref\tdark\n" +
		"#HttpOnly_mobilebanking.chase.com\tFALSE\t/\tFALSE\t0\tSESSION\tabc\n" +
		"chase.com\tTRUE\t/\tFALSE\t1000\tstale\tx\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cookies, err := LoadCookieFile(path, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []Cookie{
		{Name: "pref", Value: "dark", Domain: ".chase.com", Path: "/", Secure: true, Expires: time.Unix(1900000000, 0).UTC()},
		{Name: "SESSION", Value: "abc", Domain: "mobilebanking.chase.com", Path: "/", HttpOnly: true},
	}, cookies)
}
