package envelope

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy names recorded as decode provenance.
const (
	StrategyDirect  = "DIRECT"
	StrategyPKCS7   = "PKCS7"
	StrategyOpenSSL = "OPENSSL"
)

// ErrAllStrategiesFailed is the sentinel matched by errors.Is when every
// decode strategy has been exhausted.
var ErrAllStrategiesFailed = errors.New("all decode strategies failed")

// DecodeError reports a failed decode with the ordered list of every
// attempt's error message, kept for diagnostics in the final report.
type DecodeError struct {
	FileName string
	Attempts []string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("envelope: decode failed for %s after %d attempts: %s",
		e.FileName, len(e.Attempts), strings.Join(e.Attempts, "; "))
}

// Is matches ErrAllStrategiesFailed.
func (e *DecodeError) Is(target error) bool {
	return target == ErrAllStrategiesFailed
}
