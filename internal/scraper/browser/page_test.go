package browser

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<div class="coaching">  Please   <b>verify</b> your identity. </div>
<a href="/Secure/Accounts/Details/D1">TOTAL   CHECKING
 (...1234)</a>
<a href="Transfer/Start?fromId=D1&amp;toId=D2">Savings</a>
<a href="?page=2">Next</a>
<a href="?page=2">Next page</a>
<form id="auth_form" action="/Public/Home/LogOn" method="post">
  <input type="text" name="auth_userId" value="">
  <input type="password" name="auth_passwd">
  <input type="hidden" name="token" value="abc">
  <input type="checkbox" name="remember" checked>
  <input type="submit" name="Submit" value="Log On">
</form>
<form action="/Secure/Transfer/Transfer/EnterDetails/" method="post">
  <select name="DeliverByDate"><option value="03/14/2024">Today</option><option value="03/15/2024" selected>Tomorrow</option></select>
  <textarea name="Memo">rent</textarea>
  <input type="radio" name="PaymentOptionId" value="1" checked>
  <input type="radio" name="PaymentOptionId" value="4">
  <input type="text" name="Amount" disabled>
  <button name="Next" value="Next">Next</button>
</form>
<form action="/search"><input name="q" value="x"></form>
</body></html>`

func mustPage(t *testing.T, rawURL, html string) *Page {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	page, err := NewPage(u, 200, html)
	require.NoError(t, err)
	return page
}

func TestText_JoinsTextNodes(t *testing.T) {
	page := mustPage(t, "https://bank.test/", samplePage)

	assert.Equal(t, "Please    verify  your identity.", Text(page.Doc.Find(".coaching")))
	assert.Equal(t, "Please verify your identity.", CollapseSpace(Text(page.Doc.Find(".coaching"))))
}

func TestPage_Links(t *testing.T) {
	page := mustPage(t, "https://bank.test/Secure/Accounts/", samplePage)

	link, err := page.LinkContaining("CHECKING (...1234)")
	require.NoError(t, err)
	assert.Equal(t, "TOTAL CHECKING (...1234)", link.Text)
	assert.Equal(t, "https://bank.test/Secure/Accounts/Details/D1", link.Href)

	next, err := page.LinkExact("Next")
	require.NoError(t, err)
	assert.Equal(t, "https://bank.test/Secure/Accounts/?page=2", next.Href)

	transfer, err := page.LinkMatching(regexp.MustCompile(`\btoId=D2\b`))
	require.NoError(t, err)
	assert.Equal(t, "https://bank.test/Secure/Accounts/Transfer/Start?fromId=D1&toId=D2", transfer.Href)

	_, err = page.LinkExact("Previous")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestPage_FormLookup(t *testing.T) {
	page := mustPage(t, "https://bank.test/Public/Home/LogOn", samplePage)

	tests := []struct {
		name       string
		lookup     func() (*Form, error)
		wantAction string
		wantMethod string
		wantErr    bool
	}{
		{
			name:       "by id",
			lookup:     func() (*Form, error) { return page.FormByID("auth_form") },
			wantAction: "https://bank.test/Public/Home/LogOn",
			wantMethod: "POST",
		},
		{
			name:       "by action path ignoring trailing slash",
			lookup:     func() (*Form, error) { return page.FormByAction("/Secure/Transfer/Transfer/EnterDetails") },
			wantAction: "https://bank.test/Secure/Transfer/Transfer/EnterDetails/",
			wantMethod: "POST",
		},
		{
			name:       "by control",
			lookup:     func() (*Form, error) { return page.FormWithControl("q") },
			wantAction: "https://bank.test/search",
			wantMethod: "GET",
		},
		{
			name:    "missing id",
			lookup:  func() (*Form, error) { return page.FormByID("otp_form") },
			wantErr: true,
		},
		{
			name:    "missing action",
			lookup:  func() (*Form, error) { return page.FormByAction("/Secure/Payment") },
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			form, err := tc.lookup()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrFormNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantAction, form.Action)
			assert.Equal(t, tc.wantMethod, form.Method)
		})
	}
}

func TestForm_Values(t *testing.T) {
	page := mustPage(t, "https://bank.test/", samplePage)

	login, err := page.FormByID("auth_form")
	require.NoError(t, err)
	require.NoError(t, login.Set("auth_userId", "jdoe"))
	require.NoError(t, login.Set("auth_passwd", "hunter2"))
	assert.ErrorIs(t, login.Set("auth_otp", "123"), ErrControlNotFound)

	values, err := login.Values("Submit")
	require.NoError(t, err)
	assert.Equal(t, url.Values{
		"auth_userId": {"jdoe"},
		"auth_passwd": {"hunter2"},
		"token":       {"abc"},
		"remember":    {"on"},
		"Submit":      {"Log On"},
	}, values)

	_, err = login.Values("Next")
	assert.ErrorIs(t, err, ErrControlNotFound)

	transfer, err := page.FormWithControl("Memo")
	require.NoError(t, err)
	assert.False(t, transfer.HasControl("Amount"), "disabled controls are not successful")
	require.NoError(t, transfer.SelectRadio("PaymentOptionId", "4"))
	assert.ErrorIs(t, transfer.SelectRadio("PaymentOptionId", "9"), ErrControlNotFound)

	values, err = transfer.Values("Next")
	require.NoError(t, err)
	assert.Equal(t, url.Values{
		"DeliverByDate":   {"03/15/2024"},
		"Memo":            {"rent"},
		"PaymentOptionId": {"4"},
		"Next":            {"Next"},
	}, values)
}
