package cli

import (
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/chase"
)

const dateLayout = "01/02/2006"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	// Headers print as written; the default upper-cases them.
	t.Style().Format.Header = text.FormatDefault
	t.SetOutputMirror(w)
	return t
}

func renderAccounts(w io.Writer, accounts []*chase.Account) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Type", "Details"})

	for _, acct := range accounts {
		var details []string
		for _, key := range acct.Attributes.Keys() {
			// Links are for the scraper, not the reader.
			if strings.HasSuffix(key, "_url") {
				continue
			}
			details = append(details, key+": "+acct.Attributes.Get(key).String())
		}
		t.AppendRow(table.Row{acct.ID, acct.Name, acct.Kind.String(), strings.Join(details, "\n")})
		t.AppendSeparator()
	}
	t.Render()
}

func renderTransactions(w io.Writer, kind chase.AccountKind, txns []chase.Transaction) {
	t := newTable(w)
	amountColumns := []table.ColumnConfig{
		{Name: "Amount", Align: text.AlignRight},
		{Name: "Balance", Align: text.AlignRight},
	}
	t.SetColumnConfigs(amountColumns)

	if kind == chase.KindCredit {
		t.AppendHeader(table.Row{"Date", "Description", "Type", "Reference", "Amount", "Memo"})
	} else {
		t.AppendHeader(table.Row{"Date", "Description", "Amount", "Balance"})
	}

	for _, txn := range txns {
		switch txn := txn.(type) {
		case chase.CreditTransaction:
			t.AppendRow(table.Row{day(txn.Date), txn.Name, txn.Type, txn.ID, money(txn.Amount), txn.Memo})
		case chase.DebitTransaction:
			t.AppendRow(table.Row{day(txn.Date), txn.Name, money(txn.Amount), money(txn.Balance)})
		}
	}
	t.Render()
}

func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func day(d *time.Time) string {
	if d == nil {
		return "Pending"
	}
	return d.Format(dateLayout)
}
