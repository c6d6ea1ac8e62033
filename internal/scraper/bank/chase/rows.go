package chase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
	"github.com/shopspring/decimal"
)

// --- KEY NORMALIZATION ---

var nonWordRun = regexp.MustCompile(`[^a-z0-9_-]+`)

// Wordize turns a row label into an attribute key: "Available Credit:"
// becomes "available_credit".
func Wordize(text string) string {
	return strings.Trim(nonWordRun.ReplaceAllString(strings.ToLower(text), "_"), "_")
}

// --- VALUE COERCION ---

type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueText
	ValueMoney
	ValueDate
)

func (k ValueKind) String() string {
	switch k {
	case ValueAbsent:
		return "absent"
	case ValueText:
		return "text"
	case ValueMoney:
		return "money"
	case ValueDate:
		return "date"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is a scraped table cell after coercion. The zero Value is absent.
type Value struct {
	Kind  ValueKind
	Text  string
	Money decimal.Decimal
	Date  time.Time
}

func TextValue(s string) Value {
	return Value{Kind: ValueText, Text: s}
}

func (v Value) IsAbsent() bool {
	return v.Kind == ValueAbsent
}

func (v Value) Decimal() (decimal.Decimal, bool) {
	return v.Money, v.Kind == ValueMoney
}

func (v Value) Time() (time.Time, bool) {
	return v.Date, v.Kind == ValueDate
}

func (v Value) String() string {
	switch v.Kind {
	case ValueMoney:
		return v.Money.StringFixed(2)
	case ValueDate:
		return v.Date.Format(dateLayout)
	case ValueText:
		return v.Text
	}
	return ""
}

const (
	dateLayout = "01/02/2006"

	fieldMemo = "memo"
	fieldDate = "date"

	valueMissing = "--"
	valuePending = "Pending"
)

var nonAmountChars = regexp.MustCompile(`[^0-9.-]+`)

// CoerceValue types a raw cell by its shape. field is the key the value is
// stored under; it only matters for the memo and date special cases.
func CoerceValue(raw, field string) (Value, error) {
	text := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(text, "$"), strings.HasPrefix(text, "-$"):
		amount, err := ParseAmount(text)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueMoney, Money: amount}, nil

	case text == valueMissing, text == "" && field != fieldMemo:
		return Value{}, nil

	case text == valuePending && field == fieldDate:
		return Value{}, nil
	}

	if strings.Contains(text, "/") {
		if date, ok := parseDate(text); ok {
			return Value{Kind: ValueDate, Date: date}, nil
		}
	}

	return TextValue(text), nil
}

// coerceTransactionField is CoerceValue for transaction rows, where only the
// date field is read as a date. Memos and ids keep their slashes.
func coerceTransactionField(raw, field string) (Value, error) {
	v, err := CoerceValue(raw, field)
	if err != nil || v.Kind != ValueDate || field == fieldDate {
		return v, err
	}
	return TextValue(strings.TrimSpace(raw)), nil
}

// ParseAmount reads a currency amount such as "$1,234.56" or "-$12.00"
// exactly.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(nonAmountChars.ReplaceAllString(s, ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q: %v", bank.ErrParsingFailed, s, err)
	}
	return amount, nil
}

// parseDate accepts month/day/year integer triples. Out of range components
// are rejected rather than normalized.
func parseDate(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	var mdy [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		mdy[i] = n
	}

	month, day, year := mdy[0], mdy[1], mdy[2]
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

// --- ROW CLASSIFICATION ---

type RowKind int

const (
	// RowIgnored is any row that is neither a marker nor a pair, such as
	// header rows built from th cells.
	RowIgnored RowKind = iota
	RowMarker
	RowPair
)

// Row is a classified table row.
type Row struct {
	Kind RowKind

	// Marker rows
	Text    string // every text node of the row, joined
	CellID  string // id attribute of the single cell
	HasLink bool
	Link    browser.Link
	HasRule bool

	// Pair rows
	Key      string
	RawValue string
}

// ClassifyRow splits a tr into a marker row (one cell) or a key/value pair
// (two cells).
func ClassifyRow(page *browser.Page, tr *goquery.Selection) Row {
	cells := tr.ChildrenFiltered("td")

	switch cells.Length() {
	case 1:
		row := Row{
			Kind:    RowMarker,
			Text:    browser.Text(tr),
			CellID:  cells.AttrOr("id", ""),
			HasRule: tr.Find("hr").Length() > 0,
		}
		if a := tr.Find("a[href]").First(); a.Length() > 0 {
			if href, err := page.Resolve(a.AttrOr("href", "")); err == nil {
				row.HasLink = true
				row.Link = browser.Link{Text: browser.CollapseSpace(browser.Text(a)), Href: href}
			}
		}
		return row

	case 2:
		return Row{
			Kind:     RowPair,
			Key:      Wordize(browser.Text(cells.Eq(0))),
			RawValue: strings.TrimSpace(browser.Text(cells.Eq(1))),
		}
	}

	return Row{Kind: RowIgnored}
}

// tableRows returns the rows of table in document order, skipping the rows
// of nested tables.
func tableRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ParentsFiltered("table").First().IsSelection(table)
	})
}
