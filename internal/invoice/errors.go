package invoice

import (
	"errors"
	"fmt"
)

// Common invoice parsing errors
var (
	// ErrMalformedXML is returned when the payload cannot be parsed as XML.
	ErrMalformedXML = errors.New("malformed XML document")

	// ErrNotFatturaPA is returned when the document parses as XML but
	// lacks the FatturaPA header/body structure.
	ErrNotFatturaPA = errors.New("not a FatturaPA invoice document")

	// ErrNotInPortfolio is returned when neither party's fiscal identity
	// matches a configured portfolio client. This is a normal, expected
	// outcome, not a parse failure.
	ErrNotInPortfolio = errors.New("invoice does not belong to a portfolio client")

	// ErrNotNotification is returned when a payload is not a recognizable
	// SDI receipt or notification.
	ErrNotNotification = errors.New("not an SDI notification document")
)

// ParseError wraps errors with context about what part of the invoice
// structure failed.
type ParseError struct {
	// Op is the operation that failed (e.g., "Parse", "ParseNotification").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("invoice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newParseError(op string, err error, details string) *ParseError {
	return &ParseError{Op: op, Err: err, Details: details}
}
