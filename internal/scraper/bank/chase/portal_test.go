package chase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "jdoe"
	testPassword = "hunter2"
	testOTP      = "123456"
	sessionName  = "SESSION"
)

var testCreds = bank.Credentials{Username: testUser, Password: testPassword}

// fakePortal serves just enough of the mobile banking site to drive the
// scraper end to end. Unauthenticated requests under /Secure get the login
// page with 200 OK, like the real portal.
type fakePortal struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	next     int
	sessions map[string]string // token -> "", "otp" or "auth"

	requireOTP bool

	logins          int
	codeSentVia     string
	posts           []string
	transactionGets int

	paymentOption string
	paymentAmount string
	paymentBanner string
	paymentFinal  string

	transferValues url.Values
	transferBanner string
	skipVerify     bool
	transferFinal  string
}

type portalOption func(*fakePortal)

func requireOTP(p *fakePortal) { p.requireOTP = true }

func newFakePortal(t *testing.T, opts ...portalOption) *fakePortal {
	t.Helper()

	p := &fakePortal{
		t:             t,
		sessions:      map[string]string{},
		paymentFinal:  "Your payment has been scheduled. Step 4 of 4",
		transferFinal: "Your transfer has been scheduled. Step 5 of 5",
	}
	for _, opt := range opts {
		opt(p)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/Public/Home/LogOn", p.handleLogOn)
	mux.HandleFunc("/Public/Home/RequestCode", p.handleRequestCode)
	mux.HandleFunc("/Public/Home/SendCode", p.handleSendCode)
	mux.HandleFunc("/Public/Home/EnterActivationCode", p.handleEnterCode)
	mux.HandleFunc("/Public/Home/ActivateDevice", p.handleActivate)
	mux.HandleFunc("/Secure/", p.secure(p.handleSecure))

	p.srv = httptest.NewServer(p.record(mux))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePortal) URL() string {
	return p.srv.URL
}

func (p *fakePortal) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			p.mu.Lock()
			p.posts = append(p.posts, r.URL.Path)
			p.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

// with runs fn while holding the portal lock, for tests that reconfigure or
// inspect the portal between requests.
func (p *fakePortal) with(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func (p *fakePortal) postCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.posts)
}

func (p *fakePortal) loginCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// expireSessions drops every server-side session.
func (p *fakePortal) expireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = map[string]string{}
}

func (p *fakePortal) token(w http.ResponseWriter, r *http.Request) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, err := r.Cookie(sessionName); err == nil {
		if _, ok := p.sessions[c.Value]; ok {
			return c.Value
		}
	}
	p.next++
	tok := fmt.Sprintf("tok-%d", p.next)
	p.sessions[tok] = ""
	http.SetCookie(w, &http.Cookie{Name: sessionName, Value: tok, Path: "/", HttpOnly: true})
	return tok
}

func (p *fakePortal) setState(tok, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[tok] = state
}

func (p *fakePortal) state(tok string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[tok]
}

func writePage(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!DOCTYPE html><html><head><meta http-equiv=\"refresh\" content=\"760;url=/Public/Home/LogOff\"></head><body>%s</body></html>", body)
}

func banner(msg string) string {
	return `<div class="coaching"><span class="icon"></span>` + msg + `</div>`
}

// --- LOGIN ---

const loginForm = `<form id="auth_form" method="post" action="/Public/Home/LogOn">
	<input type="text" name="auth_userId">
	<input type="password" name="auth_passwd">
	<input type="hidden" name="LogOn" value="true">
	<input type="submit" value="Log On">
</form>`

const enterCodeForm = `<form method="post" action="/Public/Home/ActivateDevice">
	<input type="text" name="auth_otp">
	<input type="password" name="auth_passwd">
	<input type="submit" name="Next" value="Next">
</form>`

func (p *fakePortal) handleLogOn(w http.ResponseWriter, r *http.Request) {
	tok := p.token(w, r)

	if r.Method != http.MethodPost {
		writePage(w, loginForm)
		return
	}

	_ = r.ParseForm()
	if r.PostForm.Get("auth_userId") != testUser || r.PostForm.Get("auth_passwd") != testPassword {
		writePage(w, banner("The information you entered does not match our records.")+loginForm)
		return
	}

	p.mu.Lock()
	p.logins++
	otp := p.requireOTP
	p.mu.Unlock()

	if otp {
		p.setState(tok, "otp")
		writePage(w, `<p>We don't recognize this device.</p>
			<a href="/Public/Home/EnterActivationCode">Already Have an Activation Code?</a>
			<form method="post" action="/Public/Home/RequestCode">
				<input type="submit" name="Next" value="Next">
			</form>`)
		return
	}

	p.setState(tok, "auth")
	http.Redirect(w, r, "/Secure/Accounts/", http.StatusFound)
}

func (p *fakePortal) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	p.token(w, r)
	writePage(w, `<p>How should we send your activation code?</p>
		<a href="/Public/Home/SendCode?via=sms">Please text me at (xxx) xxx-1234</a>
		<a href="/Public/Home/SendCode?via=email">j***e@example.com</a>
		<a href="/Public/Home/SendCode?via=call">call_me at (xxx) xxx-1234</a>`)
}

func (p *fakePortal) handleSendCode(w http.ResponseWriter, r *http.Request) {
	p.token(w, r)
	p.mu.Lock()
	p.codeSentVia = r.URL.Query().Get("via")
	p.mu.Unlock()
	writePage(w, `<p>We sent your code.</p>`+enterCodeForm)
}

func (p *fakePortal) handleEnterCode(w http.ResponseWriter, r *http.Request) {
	p.token(w, r)
	writePage(w, enterCodeForm)
}

func (p *fakePortal) handleActivate(w http.ResponseWriter, r *http.Request) {
	tok := p.token(w, r)
	_ = r.ParseForm()

	if p.state(tok) != "otp" || r.PostForm.Get("auth_otp") != testOTP || r.PostForm.Get("auth_passwd") != testPassword {
		writePage(w, banner("The activation code you entered is not valid.")+enterCodeForm)
		return
	}
	p.setState(tok, "auth")
	http.Redirect(w, r, "/Secure/Accounts/", http.StatusFound)
}

// --- SECURE PAGES ---

func (p *fakePortal) secure(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p.state(p.token(w, r)) != "auth" {
			writePage(w, loginForm)
			return
		}
		next(w, r)
	}
}

func (p *fakePortal) fixture(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(testutil.LoadFixture(p.t, "chase", name)))
}

func (p *fakePortal) handleSecure(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/Secure/Accounts/":
		p.fixture(w, "accounts")

	case path == "/Secure/Accounts/Details/D1":
		p.mu.Lock()
		p.transactionGets++
		p.mu.Unlock()
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		p.fixture(w, "transactions_debit_"+page)

	case path == "/Secure/Accounts/Details/C1":
		p.fixture(w, "transactions_credit")

	case strings.HasPrefix(path, "/Secure/Payment/"):
		p.handlePayment(w, r)

	case strings.HasPrefix(path, "/Secure/Transfer/"):
		p.handleTransfer(w, r)

	default:
		http.NotFound(w, r)
	}
}

// --- PAYMENT ---

const paymentTotals = "1=480.00,2=512.34,3=25.00"

func (p *fakePortal) handlePayment(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/Secure/Payment/Start":
		writePage(w, `<p>Choose a pay from account</p>
			<a href="/Secure/Payment/Options?accountId=C1&amp;fromId=D1">Pay from TOTAL CHECKING (...1234)</a>`)

	case "/Secure/Payment/Options":
		if r.Method != http.MethodPost {
			writePage(w, `<form method="post" action="/Secure/Payment/Options">
				<table>
					<tr><td><input type="radio" id="PaymentOptionId" name="PaymentOptionId" value="1"></td><td>Statement balance $480.00</td></tr>
					<tr><td><input type="radio" id="PaymentOptionId" name="PaymentOptionId" value="2"></td><td>Current Balance $512.34</td></tr>
					<tr><td><input type="radio" id="PaymentOptionId" name="PaymentOptionId" value="3"></td><td>Minimum payment $25.00</td></tr>
					<tr><td><input type="radio" id="PaymentOptionId" name="PaymentOptionId" value="4"></td><td>Other amount <input type="text" name="Amount"></td></tr>
				</table>
				<input type="submit" name="Submit" value="Next">
			</form>`)
			return
		}

		_ = r.ParseForm()
		option := r.PostForm.Get("PaymentOptionId")
		p.mu.Lock()
		p.paymentOption = option
		p.paymentAmount = r.PostForm.Get("Amount")
		bannerText := p.paymentBanner
		p.mu.Unlock()

		if bannerText != "" {
			writePage(w, banner(bannerText))
			return
		}

		total := r.PostForm.Get("Amount")
		for _, pair := range strings.Split(paymentTotals, ",") {
			if k, v, _ := strings.Cut(pair, "="); k == option {
				total = v
			}
		}
		writePage(w, `<table>
				<tr><td>Pay from:</td><td>TOTAL CHECKING (...1234)</td></tr>
				<tr><td>Total payment amount:</td><td>$`+total+`</td></tr>
			</table>
			<form method="post" action="/Secure/Payment/Confirm"><input type="submit" name="Submit" value="Submit"></form>`)

	case "/Secure/Payment/Confirm":
		writePage(w, `<p>I authorize this payment.</p>
			<form method="post" action="/Secure/Payment/Complete"><input type="submit" name="Submit" value="I Agree"></form>`)

	case "/Secure/Payment/Complete":
		p.mu.Lock()
		final := p.paymentFinal
		p.mu.Unlock()
		writePage(w, `<p>`+final+`</p>`)

	default:
		http.NotFound(w, r)
	}
}

// --- TRANSFER ---

func (p *fakePortal) handleTransfer(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/Secure/Transfer/Start":
		writePage(w, `<p>Transfer to</p>
			<a href="/Secure/Transfer/Details?fromId=D1&amp;toId=D22">To COLLEGE FUND (...0022)</a>
			<a href="/Secure/Transfer/Details?fromId=D1&amp;toId=D2">To MY SAVINGS (...5678)</a>`)

	case "/Secure/Transfer/Details":
		if r.URL.Query().Get("toId") != "D2" {
			http.NotFound(w, r)
			return
		}
		writePage(w, `<form method="post" action="/Secure/Transfer/Transfer/EnterDetails">
			<select name="DeliverByDate">
				<option value="03/15/2024" selected>03/15/2024</option>
				<option value="03/18/2024">03/18/2024</option>
			</select>
			<input type="text" name="Memo">
			<input type="text" name="Amount">
			<input type="submit" name="Next" value="Next">
		</form>`)

	case "/Secure/Transfer/Transfer/EnterDetails":
		_ = r.ParseForm()
		p.mu.Lock()
		p.transferValues = r.PostForm
		bannerText, skip := p.transferBanner, p.skipVerify
		p.mu.Unlock()

		switch {
		case bannerText != "":
			writePage(w, banner(bannerText))
		case skip:
			writePage(w, `<p>Please review.</p><form method="post" action="/Secure/Transfer/Transfer/Submit"><input type="submit" name="Submit" value="Submit"></form>`)
		default:
			http.Redirect(w, r, "/Secure/Transfer/Transfer/Verify", http.StatusFound)
		}

	case "/Secure/Transfer/Transfer/Verify":
		writePage(w, `<p>Verify your transfer.</p><form method="post" action="/Secure/Transfer/Transfer/Submit"><input type="submit" name="Submit" value="Submit"></form>`)

	case "/Secure/Transfer/Transfer/Submit":
		p.mu.Lock()
		final := p.transferFinal
		p.mu.Unlock()
		writePage(w, `<p>`+final+`</p>`)

	default:
		http.NotFound(w, r)
	}
}

// --- HELPERS ---

func newTestScraper(t *testing.T, p *fakePortal, opts ...Option) *Scraper {
	t.Helper()

	opts = append([]Option{WithBaseURL(p.URL())}, opts...)
	s, err := New(context.Background(), testCreds, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func accountsByID(t *testing.T, s *Scraper) map[string]*Account {
	t.Helper()

	accounts, err := s.Accounts(context.Background())
	require.NoError(t, err)

	byID := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID
}

func debitAccount(t *testing.T, accounts map[string]*Account, id string) *DebitAccount {
	t.Helper()

	d, ok := accounts[id].AsDebit()
	require.True(t, ok, "%s is not a debit account", id)
	return d
}

func creditAccount(t *testing.T, accounts map[string]*Account, id string) *CreditAccount {
	t.Helper()

	c, ok := accounts[id].AsCredit()
	require.True(t, ok, "%s is not a credit account", id)
	return c
}
