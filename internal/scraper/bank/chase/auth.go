package chase

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"go.uber.org/zap"
)

// OTPChannel selects how the portal delivers a one-time code.
type OTPChannel string

const (
	OTPCall        OTPChannel = "call"
	OTPEmail       OTPChannel = "email"
	OTPTextMessage OTPChannel = "sms"

	DefaultOTPChannel = OTPEmail
)

// otpLinkText is the text the delivery link for each channel contains.
var otpLinkText = map[OTPChannel]string{
	OTPTextMessage: "text me",
	OTPEmail:       "@",
	OTPCall:        "call_me",
}

func ParseOTPChannel(s string) (OTPChannel, error) {
	ch := OTPChannel(strings.ToLower(strings.TrimSpace(s)))
	if ch == "" {
		return DefaultOTPChannel, nil
	}
	if _, ok := otpLinkText[ch]; !ok {
		return "", fmt.Errorf("%w: unknown OTP channel %q", bank.ErrUsage, s)
	}
	return ch, nil
}

// LinkText returns the substring identifying the channel's delivery link.
func (c OTPChannel) LinkText() (string, error) {
	text, ok := otpLinkText[c]
	if !ok {
		return "", fmt.Errorf("%w: unknown OTP channel %q", bank.ErrUsage, string(c))
	}
	return text, nil
}

// CodePrompt blocks until a one-time code is available. An empty result
// abandons the login.
type CodePrompt func() string

// StdinPrompt asks for the code on w and reads one line from r.
func StdinPrompt(r io.Reader, w io.Writer) CodePrompt {
	reader := bufio.NewReader(r)
	return func() string {
		_, _ = fmt.Fprint(w, "Verification Code: ")
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}
}

// LoginOptions drive the one-time code step. With Code set the code is
// submitted directly; otherwise one is requested over Channel and read from
// Prompt.
type LoginOptions struct {
	Channel OTPChannel
	Code    string
	Prompt  CodePrompt
}

func (o LoginOptions) withDefaults(fallback LoginOptions) LoginOptions {
	if o.Channel == "" {
		o.Channel = fallback.Channel
	}
	if o.Channel == "" {
		o.Channel = DefaultOTPChannel
	}
	if o.Prompt == nil {
		o.Prompt = fallback.Prompt
	}
	if o.Prompt == nil {
		o.Prompt = StdinPrompt(os.Stdin, os.Stderr)
	}
	return o
}

// Login submits the credentials and, when the portal asks for device
// activation, completes the one-time code step. A coaching banner after any
// submission fails the attempt; nothing is retried.
func (s *Session) Login(ctx context.Context, opts LoginOptions) error {
	opts = opts.withDefaults(s.otp)
	linkText, err := opts.Channel.LinkText()
	if err != nil {
		return err
	}

	s.logger.Info("logging in", zap.String("username", s.creds.Username))

	// 1. Credentials
	page, err := s.fetch(ctx, s.loginURL())
	if err != nil {
		return err
	}
	form, err := page.FormByID(FormLogin)
	if err != nil {
		return fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
	}
	if err := setFields(form, FieldUserID, s.creds.Username, FieldPassword, s.creds.Password); err != nil {
		return err
	}

	if page, err = s.Submit(ctx, form, ""); err != nil {
		return err
	}

	// 2. One-time code
	if page.Contains(MarkerOTPActivation) {
		s.logger.Info("device activation required", zap.String("channel", string(opts.Channel)), zap.Bool("code_supplied", opts.Code != ""))
		if page, err = s.activateDevice(ctx, page, opts, linkText); err != nil {
			return err
		}
	}

	// 3. Persist and verify
	if err := s.SaveCookies(); err != nil {
		return err
	}
	return CheckPage(page)
}

func (s *Session) activateDevice(ctx context.Context, page *browser.Page, opts LoginOptions, linkText string) (*browser.Page, error) {
	code := strings.TrimSpace(opts.Code)

	if code != "" {
		// 1a. Already holding a code
		link, err := page.LinkContaining(LinkAlreadyHaveCode)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
		}
		if page, err = s.fetch(ctx, link.Href); err != nil {
			return nil, err
		}
	} else {
		// 1b. Ask for a code over the channel, then wait for it
		form, err := page.FormWithControl(ControlNext)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
		}
		if page, err = s.Submit(ctx, form, ControlNext); err != nil {
			return nil, err
		}

		link, err := page.LinkContaining(linkText)
		if err != nil {
			return nil, fmt.Errorf("%w: no %s delivery option: %w", bank.ErrStructuralMismatch, opts.Channel, err)
		}
		if page, err = s.fetch(ctx, link.Href); err != nil {
			return nil, err
		}

		code = strings.TrimSpace(opts.Prompt())
		if code == "" {
			s.logger.Warn("no verification code entered, login left incomplete")
			return page, nil
		}
	}

	// 2. Code and password together
	form, err := page.FormWithControl(FieldOTP)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
	}
	if err := setFields(form, FieldOTP, code, FieldPassword, s.creds.Password); err != nil {
		return nil, err
	}
	return s.Submit(ctx, form, ControlNext)
}

// setFields fills name/value pairs; a missing control means the page
// changed shape.
func setFields(form *browser.Form, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := form.Set(pairs[i], pairs[i+1]); err != nil {
			return fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
		}
	}
	return nil
}
