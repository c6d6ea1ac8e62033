package chase

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentAmount is either one of the balance policies below or a literal
// amount such as "125.00".
type PaymentAmount string

const (
	PayStatementBalance PaymentAmount = "statement"
	PayCurrentBalance   PaymentAmount = "current"
	PayMinimumBalance   PaymentAmount = "minimum"

	payOtherAmount PaymentAmount = ""
)

// Amount returns a literal PaymentAmount.
func Amount(d decimal.Decimal) PaymentAmount {
	return PaymentAmount(d.StringFixed(2))
}

func (p PaymentAmount) Symbolic() bool {
	switch p {
	case PayStatementBalance, PayCurrentBalance, PayMinimumBalance:
		return true
	}
	return false
}

// paymentOptionLabels maps the label next to each payment radio to the
// policy it selects.
var paymentOptionLabels = []struct {
	label  string
	policy PaymentAmount
}{
	{LabelStatementBalance, PayStatementBalance},
	{LabelCurrentBalance, PayCurrentBalance},
	{LabelMinimumPayment, PayMinimumBalance},
	{LabelOtherAmount, payOtherAmount},
}

// PayFrom pays this card from a deposit account and returns the amount
// paid. For a balance policy that is the total the portal confirmed.
func (c *CreditAccount) PayFrom(ctx context.Context, from *DebitAccount, amount PaymentAmount) (decimal.Decimal, error) {
	paid, err := c.payFrom(ctx, from, amount)
	if err != nil {
		return decimal.Decimal{}, c.session.wrap("PayFrom", err)
	}
	return paid, nil
}

func (c *CreditAccount) payFrom(ctx context.Context, from *DebitAccount, amount PaymentAmount) (decimal.Decimal, error) {
	s := c.session

	// 0. Arguments
	if from == nil || from.Account == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: no account to pay from", bank.ErrUsage)
	}
	var literal decimal.Decimal
	if !amount.Symbolic() {
		d, err := decimal.NewFromString(strings.TrimSpace(string(amount)))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q does not appear to be a number", bank.ErrUsage, string(amount))
		}
		literal = d
	}
	paymentURL, err := c.attrURL(AttrPaymentURL)
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.logger.Info("starting payment",
		zap.String("to", c.Name),
		zap.String("from", from.Name),
		zap.String("amount", string(amount)),
	)

	// 1. Pick the funding account
	page, err := s.Navigate(ctx, paymentURL)
	if err != nil {
		return decimal.Decimal{}, err
	}
	link, err := page.LinkContaining(from.Name)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s cannot be used for payment", bank.ErrUsage, from.Name)
	}

	// 2. Choose the payment option
	page, err = s.Navigate(ctx, link.Href)
	if err != nil {
		return decimal.Decimal{}, err
	}
	options, err := paymentOptions(page)
	if err != nil {
		return decimal.Decimal{}, err
	}
	form, err := page.FormWithControl(FieldPaymentOption)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
	}

	policy := amount
	if !amount.Symbolic() {
		policy = payOtherAmount
		if err := setFields(form, FieldAmount, strings.TrimSpace(string(amount))); err != nil {
			return decimal.Decimal{}, err
		}
	}
	value, ok := options[policy]
	if !ok {
		if amount.Symbolic() {
			return decimal.Decimal{}, fmt.Errorf("%w: payment option %q is not offered", bank.ErrUsage, string(amount))
		}
		return decimal.Decimal{}, fmt.Errorf("%w: no other amount payment option", bank.ErrStructuralMismatch)
	}
	if err := form.SelectRadio(FieldPaymentOption, value); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
	}
	if page, err = s.Submit(ctx, form, ControlSubmit); err != nil {
		return decimal.Decimal{}, err
	}

	// 3. Read back the total for balance policies
	paid := literal
	if amount.Symbolic() {
		if paid, err = totalPaymentAmount(page); err != nil {
			return decimal.Decimal{}, err
		}
	}

	// 4. Confirm the amount, then accept the agreement
	for range 2 {
		if page, err = s.submitPage(ctx, page, ControlSubmit); err != nil {
			return decimal.Decimal{}, err
		}
	}

	// 5. Verify
	if !page.Contains(MarkerPaymentComplete) {
		return decimal.Decimal{}, fmt.Errorf("%w: payment did not reach %q", bank.ErrWorkflowVerification, MarkerPaymentComplete)
	}

	s.logger.Info("payment scheduled", zap.String("to", c.Name), zap.String("amount", paid.StringFixed(2)))
	return paid, nil
}

// paymentOptions maps each offered policy to its radio value. The label is
// the text of the radio's grandparent.
func paymentOptions(page *browser.Page) (map[PaymentAmount]string, error) {
	radios := page.Doc.Find(SelectorPaymentOption)
	if radios.Length() == 0 {
		return nil, fmt.Errorf("%w: no payment options", bank.ErrStructuralMismatch)
	}

	options := make(map[PaymentAmount]string, radios.Length())
	radios.Each(func(_ int, radio *goquery.Selection) {
		label := browser.Text(radio.Parent().Parent())
		for _, o := range paymentOptionLabels {
			if strings.Contains(label, o.label) {
				options[o.policy] = radio.AttrOr("value", "")
				return
			}
		}
	})
	return options, nil
}

func totalPaymentAmount(page *browser.Page) (decimal.Decimal, error) {
	tables := page.Doc.Find("table")
	if tables.Length() != 1 {
		return decimal.Decimal{}, fmt.Errorf("%w: payment confirmation: expected 1 table, found %d", bank.ErrStructuralMismatch, tables.Length())
	}

	var (
		total decimal.Decimal
		found bool
		err   error
	)
	tableRows(tables.First()).EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		text := browser.Text(tr)
		if !strings.Contains(text, LabelTotalPayment) {
			return true
		}
		fields := strings.Fields(text)
		total, err = ParseAmount(fields[len(fields)-1])
		found = true
		return false
	})

	if err != nil {
		return decimal.Decimal{}, err
	}
	if !found {
		return decimal.Decimal{}, fmt.Errorf("%w: could not find %q", bank.ErrParsingFailed, LabelTotalPayment)
	}
	return total, nil
}

// submitPage clicks button on whichever form of page holds it.
func (s *Session) submitPage(ctx context.Context, page *browser.Page, button string) (*browser.Page, error) {
	form, err := page.FormWithControl(button)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bank.ErrStructuralMismatch, err)
	}
	return s.Submit(ctx, form, button)
}
