package bank

import (
	"errors"
	"fmt"
)

var (
	ErrRequestFailed = errors.New("bank request failed")

	ErrParsingFailed = errors.New("failed to parse bank response")

	// ErrApplication is matched by every ApplicationError.
	ErrApplication = errors.New("bank reported an error")
	// ErrStructuralMismatch means a page lacked the tables, forms or links
	// the scraper expects: an unsupported page variant or a markup change.
	ErrStructuralMismatch = errors.New("unexpected page structure")
	// ErrUsage means the caller passed an invalid argument.
	ErrUsage = errors.New("invalid usage")
	// ErrWorkflowVerification means a multi-step submission finished without
	// reaching the expected final step. The outcome is unknown and must be
	// verified out-of-band.
	ErrWorkflowVerification = errors.New("workflow verification failed")
)

// ApplicationError is a problem the portal reported in-page, usually in a
// page served with 200 OK. Message is the banner text verbatim.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

func (e *ApplicationError) Is(target error) bool {
	return target == ErrApplication
}

// ScraperError provides detailed error context
type ScraperError struct {
	BankCode  BankCode
	Operation string
	Cause     error
	Details   string
}

func (e *ScraperError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s failed: %v", e.BankCode, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s] %s failed: %v - %s", e.BankCode, e.Operation, e.Cause, e.Details)
}

func (e *ScraperError) Unwrap() error {
	return e.Cause
}
