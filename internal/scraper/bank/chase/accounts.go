package chase

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"go.uber.org/zap"
)

// Accounts fetches the accounts list. Every call builds fresh accounts.
func (s *Scraper) Accounts(ctx context.Context) ([]*Account, error) {
	page, err := s.session.Navigate(ctx, s.session.accountsURL())
	if err != nil {
		return nil, s.wrap("Accounts", err)
	}

	accounts, err := ParseAccounts(page)
	if err != nil {
		return nil, s.wrap("Accounts", err)
	}
	for _, a := range accounts {
		a.session = s.session
	}

	s.logger.Info("fetched accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// ParseAccounts reads the single table of the accounts list. Each account is
// a run of rows opened by a cell carrying the account id and closed by a
// horizontal rule. A marker row without an id where an account should start
// ends the list.
func ParseAccounts(page *browser.Page) ([]*Account, error) {
	tables := page.Doc.Find("table")
	if tables.Length() != 1 {
		return nil, fmt.Errorf("%w: accounts page: expected 1 table, found %d", bank.ErrStructuralMismatch, tables.Length())
	}

	var (
		accounts []*Account
		current  *Account
		attrs    = map[string]Value{}
		parseErr error
	)

	tableRows(tables.First()).EachWithBreak(func(i int, tr *goquery.Selection) bool {
		row := ClassifyRow(page, tr)

		switch row.Kind {
		case RowPair:
			v, err := CoerceValue(row.RawValue, row.Key)
			if err != nil {
				parseErr = fmt.Errorf("accounts row %d: %w", i, err)
				return false
			}
			attrs[row.Key] = v

		case RowMarker:
			switch {
			case current == nil:
				// 1. Account header: id cell with the details link
				if row.CellID == "" {
					return false
				}
				if !row.HasLink {
					parseErr = fmt.Errorf("%w: accounts row %d: account %q has no details link", bank.ErrStructuralMismatch, i, row.CellID)
					return false
				}
				current = &Account{
					ID:   row.CellID,
					Name: strings.TrimSpace(row.Link.Text),
					URL:  row.Link.Href,
				}

			// 2. Action links
			case strings.Contains(row.Text, LabelTransferMoney) && row.HasLink:
				attrs[AttrTransferFromURL] = TextValue(row.Link.Href)
			case strings.Contains(row.Text, LabelPayCreditCard) && row.HasLink:
				attrs[AttrPaymentURL] = TextValue(row.Link.Href)
			case row.HasLink && strings.Contains(row.Link.Href, HrefRewardsDetails):
				attrs[AttrRewardsProgram] = TextValue(row.Text)
				attrs[AttrRewardsProgramURL] = TextValue(row.Link.Href)

			// 3. End of account
			case row.HasRule:
				if _, ok := attrs[AttrAvailableCredit]; ok {
					current.Kind = KindCredit
				}
				current.Attributes = newAttributes(attrs)
				accounts = append(accounts, current)

				current = nil
				attrs = map[string]Value{}
			}
		}
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return accounts, nil
}
