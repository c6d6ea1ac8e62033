package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHAR(t *testing.T) {
	har := &HARLog{Entries: []HAREntry{{
		Request: HARRequest{
			Method: "POST",
			URL:    "https://portal.test/Public/Home/LogOn?otp=123456&lang=en",
			Headers: []HARHeader{
				{Name: "Cookie", Value: "SESSION=abc"},
				{Name: "Accept", Value: "text/html"},
				{Name: "X-Csrf-Token", Value: "t0k3n"},
			},
			Body: "auth_userId=jdoe&auth_passwd=hunter2&Amount=25.00",
		},
		Response: HARResponse{
			Status:  200,
			Headers: []HARHeader{{Name: "Set-Cookie", Value: "SESSION=abc; Path=/"}},
			Content: HARContent{
				MimeType: "text/html",
				Text:     `<p>Questions? mail jane.doe@mail.example or call 800-935-9935</p>`,
			},
		},
	}}}

	clean := SanitizeHAR(har)
	require.Len(t, clean.Entries, 1)
	req, resp := clean.Entries[0].Request, clean.Entries[0].Response

	assert.Equal(t, "https://portal.test/Public/Home/LogOn?lang=en&otp=%5BREDACTED%5D", req.URL)
	assert.Equal(t, []HARHeader{
		{Name: "Cookie", Value: redacted},
		{Name: "Accept", Value: "text/html"},
		{Name: "X-Csrf-Token", Value: redacted},
	}, req.Headers)
	assert.Equal(t, "Amount=25.00&auth_passwd=%5BREDACTED%5D&auth_userId=%5BREDACTED%5D", req.Body)

	assert.Equal(t, redacted, resp.Headers[0].Value)
	assert.Equal(t, `<p>Questions? mail user@example.com or call (555) 555-0100</p>`, resp.Content.Text)

	assert.Equal(t, "SESSION=abc", har.Entries[0].Request.Headers[0].Value, "the input is left alone")
}

func TestSanitizeBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"form without secrets is untouched", "b=2&a=1", "b=2&a=1"},
		{"html is not a form", `<input name="password" value="x">`, `<input name="password" value="x">`},
		{
			name: "json strings",
			in:   `{"userId":"jdoe","password": "hunter2","memo":"rent"}`,
			want: `{"userId": "[REDACTED]","password": "[REDACTED]","memo":"rent"}`,
		},
		{
			name: "json numbers",
			in:   `{"otpCode": 123456, "amount": 25}`,
			want: `{"otpCode": "[REDACTED]", "amount": 25}`,
		},
		{
			name: "json nested objects are left to their keys",
			in:   `{"auth": {"token": "abc"}}`,
			want: `{"auth": {"token": "[REDACTED]"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeBody(tc.in))
		})
	}
}

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      string
		wantFound []string
	}{
		{
			name:      "clean page",
			in:        `<td>TOTAL CHECKING (...1234)</td><td>$1,234.56</td>`,
			want:      `<td>TOTAL CHECKING (...1234)</td><td>$1,234.56</td>`,
			wantFound: nil,
		},
		{
			name:      "contact details",
			in:        `jdoe@example.org (212) 555-0199`,
			want:      `user@example.com (555) 555-0100`,
			wantFound: []string{"Email address", "Phone number"},
		},
		{
			name:      "token in script",
			in:        `var token = "AbCdEfGhIjKlMnOpQrStUvWx";`,
			want:      `var token="REDACTED";`,
			wantFound: []string{"Token"},
		},
		{
			name:      "cookie write",
			in:        `document.cookie = 'SESSION=abc; path=/';`,
			want:      `document.cookie="REDACTED";`,
			wantFound: []string{"Cookie"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, found := SanitizeHTML(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantFound, found)
		})
	}
}
