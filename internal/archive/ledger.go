package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"fatturex/pkg/models"
)

// LedgerFileName returns the prima nota file name for a year.
func LedgerFileName(year int) string {
	return fmt.Sprintf("prima_nota_%d.json", year)
}

// appendLedgerEntry performs the read-modify-write cycle for one ledger
// key under its own lock: load (or initialize), append, recompute the
// summary from the full entry list, write back atomically.
func (w *Writer) appendLedgerEntry(client string, direction models.Direction, year int, entry models.LedgerEntry) error {
	const op = "appendLedgerEntry"

	lock := w.lockFor(fmtKey(client, direction, year))
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(w.root, safeName(client), string(direction), strconv.Itoa(year), LedgerFileName(year))

	ledger, err := ReadLedger(path)
	if os.IsNotExist(err) {
		ledger = models.NewLedger(client, year, direction)
	} else if err != nil {
		return &WriteError{Op: op, Path: path, Err: err}
	}

	ledger.Invoices = append(ledger.Invoices, entry)
	ledger.Recompute(time.Now())

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return &WriteError{Op: op, Path: path, Err: err}
	}
	return atomicWrite(path, data)
}

// lockFor returns the mutex guarding one ledger key, creating it on
// first use.
func (w *Writer) lockFor(key string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	lock, ok := w.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		w.keyLocks[key] = lock
	}
	return lock
}

// ReadLedger loads a prima nota file. The raw os.IsNotExist error is
// passed through so callers can initialize an empty ledger.
func ReadLedger(path string) (*models.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ledger models.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("ReadLedger: corrupt ledger %s: %w", path, err)
	}
	return &ledger, nil
}
