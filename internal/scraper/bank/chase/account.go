package chase

import (
	"fmt"
	"sort"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
)

type AccountKind int

const (
	KindDebit AccountKind = iota
	KindCredit
)

func (k AccountKind) String() string {
	if k == KindCredit {
		return "credit"
	}
	return "debit"
}

// Attributes are the facts scraped for an account. A key, once populated,
// cannot be overwritten.
type Attributes struct {
	values map[string]Value
}

func newAttributes(values map[string]Value) *Attributes {
	a := &Attributes{values: make(map[string]Value, len(values))}
	for k, v := range values {
		a.values[k] = v
	}
	return a
}

func (a *Attributes) Lookup(key string) (Value, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Get returns the value for key, absent when the key is missing.
func (a *Attributes) Get(key string) Value {
	return a.values[key]
}

// Set adds a new attribute. Setting a key that already exists fails.
func (a *Attributes) Set(key string, v Value) error {
	if _, ok := a.values[key]; ok {
		return fmt.Errorf("%w: attribute %q is read-only", bank.ErrUsage, key)
	}
	a.values[key] = v
	return nil
}

// Keys returns the attribute keys in lexical order.
func (a *Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Attributes) Len() int {
	return len(a.values)
}

// Account is one entry of the accounts list. Kind selects which of AsCredit
// and AsDebit succeeds.
type Account struct {
	ID         string
	Name       string
	URL        string
	Kind       AccountKind
	Attributes *Attributes

	session *Session
}

func (a *Account) String() string {
	return a.Name
}

// CreditAccount is a credit card. Only credit accounts can be paid.
type CreditAccount struct {
	*Account
}

// DebitAccount is a checking or savings account. Only debit accounts can
// move money to each other.
type DebitAccount struct {
	*Account
}

func (a *Account) AsCredit() (*CreditAccount, bool) {
	if a == nil || a.Kind != KindCredit {
		return nil, false
	}
	return &CreditAccount{Account: a}, true
}

func (a *Account) AsDebit() (*DebitAccount, bool) {
	if a == nil || a.Kind != KindDebit {
		return nil, false
	}
	return &DebitAccount{Account: a}, true
}

// attrURL returns a URL attribute filled from a marker row.
func (a *Account) attrURL(key string) (string, error) {
	v := a.Attributes.Get(key)
	if v.Kind != ValueText || v.Text == "" {
		return "", fmt.Errorf("%w: account %q has no %s", bank.ErrStructuralMismatch, a.Name, key)
	}
	return v.Text, nil
}
