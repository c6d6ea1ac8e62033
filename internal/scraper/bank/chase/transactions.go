package chase

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultMaxPages = 100

// Transaction is either a DebitTransaction or a CreditTransaction, matching
// the kind of the account it was read from.
type Transaction interface {
	// Description is the name line of the transaction.
	Description() string
	// PostedOn is the transaction date; ok is false while it is pending.
	PostedOn() (date time.Time, ok bool)
}

type DebitTransaction struct {
	Name    string
	Date    *time.Time
	Amount  decimal.NullDecimal
	Balance decimal.NullDecimal
}

func (t DebitTransaction) Description() string { return t.Name }

func (t DebitTransaction) PostedOn() (time.Time, bool) { return derefDate(t.Date) }

type CreditTransaction struct {
	Name   string
	Date   *time.Time
	Type   string
	ID     string
	Amount decimal.NullDecimal
	Memo   string
}

func (t CreditTransaction) Description() string { return t.Name }

func (t CreditTransaction) PostedOn() (time.Time, bool) { return derefDate(t.Date) }

func derefDate(d *time.Time) (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	return *d, true
}

// transactionFields maps row labels to transaction fields. Labels missing
// here are skipped.
var transactionFields = map[string]string{
	"balance":             "balance",
	"transaction_date":    "date",
	"date":                "date",
	"type":                "type",
	"memo_description":    "memo",
	"transaction_number":  "id",
	"debit_credit_amount": "amount",
	"debit_credit":        "amount",
}

// TransactionOptions bound a transaction listing. Zero Since and Through
// leave that side of the window open; a non-positive MaxPages means
// DefaultMaxPages.
type TransactionOptions struct {
	Since    time.Time
	Through  time.Time
	MaxPages int
}

// --- ITERATOR ---

// TransactionIterator walks the transaction history newest first, one page
// at a time.
//
//	it := account.Transactions(opts)
//	for it.Next(ctx) {
//		txn := it.Transaction()
//	}
//	if err := it.Err(); err != nil { ... }
type TransactionIterator struct {
	account   *Account
	opts      TransactionOptions
	nextURL   string
	pagesLeft int

	buffered []Transaction
	current  Transaction
	done     bool
	err      error
}

// Transactions starts a new listing. Nothing is fetched until Next.
func (a *Account) Transactions(opts TransactionOptions) *TransactionIterator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &TransactionIterator{
		account:   a,
		opts:      opts,
		nextURL:   a.URL,
		pagesLeft: opts.MaxPages,
	}
}

// Next advances to the next transaction, fetching the next page when the
// current one is used up. It returns false at the end of the window, when
// the page budget runs out, or on error.
func (it *TransactionIterator) Next(ctx context.Context) bool {
	for len(it.buffered) == 0 {
		if it.done || it.err != nil {
			return false
		}
		if it.pagesLeft == 0 || it.nextURL == "" {
			it.done = true
			return false
		}
		it.fetch(ctx)
	}

	it.current, it.buffered = it.buffered[0], it.buffered[1:]
	return true
}

func (it *TransactionIterator) Transaction() Transaction {
	return it.current
}

func (it *TransactionIterator) Err() error {
	return it.err
}

func (it *TransactionIterator) fetch(ctx context.Context) {
	s := it.account.session
	it.pagesLeft--

	page, err := s.Navigate(ctx, it.nextURL)
	if err != nil {
		it.err = s.wrap("Transactions", err)
		return
	}

	result, err := ParseTransactionPage(page, it.account.Kind, it.opts, s.now())
	if err != nil {
		it.err = s.wrap("Transactions", err)
		return
	}

	s.logger.Debug("parsed transaction page",
		zap.String("account", it.account.Name),
		zap.Int("transactions", len(result.Transactions)),
		zap.Bool("reached_since", result.ReachedSince),
	)

	it.buffered = result.Transactions
	it.nextURL = result.NextURL
	if result.ReachedSince {
		it.done = true
	}
}

// Collect drains it into a slice.
func Collect(ctx context.Context, it *TransactionIterator) ([]Transaction, error) {
	var out []Transaction
	for it.Next(ctx) {
		out = append(out, it.Transaction())
	}
	return out, it.Err()
}

// --- PAGE PARSING ---

// TransactionPage is what one history page yields.
type TransactionPage struct {
	Transactions []Transaction
	// ReachedSince is set once a transaction older than the window was
	// seen; the rest of the history is older still.
	ReachedSince bool
	NextURL      string
}

// ParseTransactionPage reads the second of the page's two tables. A pending
// transaction counts as dated now.
func ParseTransactionPage(page *browser.Page, kind AccountKind, opts TransactionOptions, now time.Time) (*TransactionPage, error) {
	tables := page.Doc.Find("table")
	if tables.Length() != 2 {
		return nil, fmt.Errorf("%w: transactions page: expected 2 tables, found %d", bank.ErrStructuralMismatch, tables.Length())
	}

	result := &TransactionPage{}
	var (
		name     string
		named    bool
		fields   = map[string]Value{}
		parseErr error
	)

	tableRows(tables.Eq(1)).EachWithBreak(func(i int, tr *goquery.Selection) bool {
		row := ClassifyRow(page, tr)

		switch row.Kind {
		case RowPair:
			field, ok := transactionFields[row.Key]
			if !ok {
				return true
			}
			v, err := coerceTransactionField(row.RawValue, field)
			if err != nil {
				parseErr = fmt.Errorf("transactions row %d: %w", i, err)
				return false
			}
			fields[field] = v

		case RowMarker:
			if !named {
				name = browser.CollapseSpace(row.Text)
				named = true
				return true
			}
			if !row.HasRule {
				return true
			}

			txn, err := buildTransaction(kind, name, fields)
			if err != nil {
				parseErr = fmt.Errorf("transactions row %d: %w", i, err)
				return false
			}

			date, ok := txn.PostedOn()
			if !ok {
				date = now
			}
			if !opts.Since.IsZero() && date.Before(opts.Since) {
				result.ReachedSince = true
				return false
			}
			if opts.Through.IsZero() || !date.After(opts.Through) {
				result.Transactions = append(result.Transactions, txn)
			}

			name, named = "", false
			fields = map[string]Value{}
		}
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	if result.ReachedSince {
		return result, nil
	}

	if next, err := page.LinkExact(LinkNextPage); err == nil {
		result.NextURL = next.Href
	}
	return result, nil
}

func buildTransaction(kind AccountKind, name string, fields map[string]Value) (Transaction, error) {
	date, err := dateField(fields)
	if err != nil {
		return nil, err
	}
	amount, err := moneyField(fields, "amount")
	if err != nil {
		return nil, err
	}

	if kind == KindCredit {
		return CreditTransaction{
			Name:   name,
			Date:   date,
			Type:   fields["type"].String(),
			ID:     fields["id"].String(),
			Amount: amount,
			Memo:   fields["memo"].String(),
		}, nil
	}

	balance, err := moneyField(fields, "balance")
	if err != nil {
		return nil, err
	}
	return DebitTransaction{
		Name:    name,
		Date:    date,
		Amount:  amount,
		Balance: balance,
	}, nil
}

func dateField(fields map[string]Value) (*time.Time, error) {
	v := fields["date"]
	switch v.Kind {
	case ValueAbsent:
		return nil, nil
	case ValueDate:
		d := v.Date
		return &d, nil
	}
	return nil, fmt.Errorf("%w: transaction date %q", bank.ErrParsingFailed, v.String())
}

func moneyField(fields map[string]Value, field string) (decimal.NullDecimal, error) {
	v := fields[field]
	switch v.Kind {
	case ValueAbsent:
		return decimal.NullDecimal{}, nil
	case ValueMoney:
		return decimal.NewNullDecimal(v.Money), nil
	}
	return decimal.NullDecimal{}, fmt.Errorf("%w: transaction %s %q", bank.ErrParsingFailed, field, v.String())
}
