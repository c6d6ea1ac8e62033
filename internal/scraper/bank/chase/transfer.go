package chase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferRequest describes a transfer between deposit accounts. Date is
// passed to the deliver-by field as is; empty keeps the portal default.
type TransferRequest struct {
	Amount string
	Memo   string
	Date   string
}

// TransferTo moves money from this account to other.
func (d *DebitAccount) TransferTo(ctx context.Context, other *DebitAccount, req TransferRequest) error {
	if err := d.transferTo(ctx, other, req); err != nil {
		return d.session.wrap("TransferTo", err)
	}
	return nil
}

// TransferFrom pulls money from other into this account, which is other
// pushing to it.
func (d *DebitAccount) TransferFrom(ctx context.Context, other *DebitAccount, req TransferRequest) error {
	if other == nil || other.Account == nil {
		return d.session.wrap("TransferFrom", fmt.Errorf("%w: no account to transfer from", bank.ErrUsage))
	}
	return other.TransferTo(ctx, d, req)
}

func (d *DebitAccount) transferTo(ctx context.Context, other *DebitAccount, req TransferRequest) error {
	s := d.session

	// 0. Arguments
	if other == nil || other.Account == nil {
		return fmt.Errorf("%w: no account to transfer to", bank.ErrUsage)
	}
	if other.ID == d.ID {
		return fmt.Errorf("%w: cannot transfer %s to itself", bank.ErrUsage, d.Name)
	}
	// The literal is posted as typed so the portal sees the caller's scale.
	amount := strings.TrimSpace(req.Amount)
	if _, err := decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("%w: %q does not appear to be a number", bank.ErrUsage, req.Amount)
	}
	transferURL, err := d.attrURL(AttrTransferFromURL)
	if err != nil {
		return err
	}

	s.logger.Info("starting transfer",
		zap.String("from", d.Name),
		zap.String("to", other.Name),
		zap.String("amount", amount),
	)

	// 1. Pick the destination
	page, err := s.Navigate(ctx, transferURL)
	if err != nil {
		return err
	}
	toID := regexp.MustCompile(`\btoId=` + regexp.QuoteMeta(other.ID) + `\b`)
	link, err := page.LinkMatching(toID)
	if err != nil {
		return fmt.Errorf("%w: %s not in available transfers list", bank.ErrUsage, other.Name)
	}

	// 2. Fill in the details
	page, err = s.Navigate(ctx, link.Href)
	if err != nil {
		return err
	}
	form, err := page.FormByAction(TransferFormAction)
	if err != nil {
		return fmt.Errorf("%w: unable to locate transfer form: %w", bank.ErrStructuralMismatch, err)
	}
	if req.Date != "" {
		if err := setFields(form, FieldDeliverByDate, req.Date); err != nil {
			return err
		}
	}
	if err := setFields(form, FieldMemo, req.Memo, FieldAmount, amount); err != nil {
		return err
	}
	if page, err = s.Submit(ctx, form, ControlNext); err != nil {
		return err
	}

	// 3. Verification step
	if !strings.Contains(page.URL.String(), MarkerTransferVerify) {
		return fmt.Errorf("%w: unexpected URL %s after entering details", bank.ErrWorkflowVerification, page.URL)
	}
	if page, err = s.submitPage(ctx, page, ControlSubmit); err != nil {
		return err
	}

	// 4. Verify
	if !page.Contains(MarkerTransferComplete) {
		return fmt.Errorf("%w: transfer did not reach %q", bank.ErrWorkflowVerification, MarkerTransferComplete)
	}

	s.logger.Info("transfer submitted", zap.String("from", d.Name), zap.String("to", other.Name))
	return nil
}
