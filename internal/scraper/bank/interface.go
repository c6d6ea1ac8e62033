// Package bank defines the common structs and logic used throughout bank
// implementations.
package bank

import "context"

type BankScraper interface {
	// Login authenticates with the bank and establishes a session
	Login(ctx context.Context) error

	// Close releases the browser backing the session
	Close() error
}

type BankCode string

const (
	BankChase BankCode = "CHASE"
)
