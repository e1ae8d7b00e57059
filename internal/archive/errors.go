package archive

import "fmt"

// WriteError reports a filesystem failure during archive or ledger
// writing. Ledger writes go through temp-file-and-rename, so a
// WriteError never means a partially written ledger.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("archive: %s failed for %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}
