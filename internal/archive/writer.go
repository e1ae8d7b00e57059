// Package archive persists decoded invoices into a deterministic
// per-client/per-direction/per-year directory tree and maintains the
// prima nota ledger for each key.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fatturex/internal/classify"
	"fatturex/internal/dedup"
	"fatturex/internal/logger"
	"fatturex/pkg/models"
)

// Fixed subfolder set of one {client, direction, year} directory.
const (
	subRecords       = "json"
	subDecoded       = "xml_decodificati"
	subOriginals     = "p7m_originali"
	subMetadata      = "metadati"
	subNotifications = "ricevute"
)

var subfolders = []string{subRecords, subDecoded, subOriginals, subMetadata, subNotifications}

// unsafeChars are stripped from path components built from untrusted
// names.
var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)

const maxNameLen = 200

// Provenance records how an archived invoice was obtained.
type Provenance struct {
	DecodeStrategy       string    `json:"decode_strategy"`
	FileHash             string    `json:"file_hash"`
	ContentHash          string    `json:"content_hash"`
	RelatedMetadata      []string  `json:"related_metadata"`
	RelatedNotifications []string  `json:"related_notifications"`
	ProcessedAt          time.Time `json:"processed_at"`
}

// Record is the structured JSON artifact written per archived invoice.
type Record struct {
	ID         string               `json:"id"`
	FileName   string               `json:"file_name"`
	Invoice    models.InvoiceRecord `json:"invoice"`
	Provenance Provenance           `json:"provenance"`
}

// RelatedFiles are co-located companions sharing the invoice's filename
// stem.
type RelatedFiles struct {
	Metadata      []string
	Notifications []string
}

// Writer persists archive artifacts under a root directory. Ledger
// updates for the same key are serialized through per-key mutexes, so
// concurrent workers archiving into the same client/year never interleave
// a read-modify-write.
type Writer struct {
	root string
	log  zerolog.Logger

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewWriter returns a writer rooted at the archive base directory.
func NewWriter(root string) *Writer {
	return &Writer{
		root:     root,
		log:      logger.WithComponent("archive"),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// Root returns the archive base directory.
func (w *Writer) Root() string { return w.root }

// Archive writes all artifacts for one decoded invoice: the structured
// record, the decoded XML, the original envelope, copies of related
// companion files, and the ledger entry. Returns the target directory.
func (w *Writer) Archive(env *models.DecodedEnvelope, inv *models.InvoiceRecord, fp dedup.Fingerprint) (string, error) {
	const op = "Archive"

	base, err := w.ensureLayout(inv.ClientName, inv.Direction, inv.Year)
	if err != nil {
		return "", err
	}

	doc := env.Source
	stem := safeName(doc.Stem())
	related := FindRelated(doc)

	record := Record{
		ID:       uuid.NewString(),
		FileName: doc.FileName,
		Invoice:  *inv,
		Provenance: Provenance{
			DecodeStrategy:       env.Strategy,
			FileHash:             fp.FileHash,
			ContentHash:          fp.ContentHash,
			RelatedMetadata:      baseNames(related.Metadata),
			RelatedNotifications: baseNames(related.Notifications),
			ProcessedAt:          time.Now().UTC(),
		},
	}

	recordJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", &WriteError{Op: op, Path: doc.FileName, Err: err}
	}

	artifacts := []string{
		filepath.Join(base, subRecords, stem+".json"),
		filepath.Join(base, subDecoded, stem+".xml"),
		filepath.Join(base, subOriginals, stem+doc.Extension),
	}
	if err := atomicWrite(artifacts[0], recordJSON); err != nil {
		return "", err
	}
	if err := atomicWrite(artifacts[1], env.Payload); err != nil {
		w.discard(artifacts[:1])
		return "", err
	}
	if err := atomicWrite(artifacts[2], doc.Content); err != nil {
		w.discard(artifacts[:2])
		return "", err
	}

	for _, src := range related.Metadata {
		if err := copyFile(src, filepath.Join(base, subMetadata, filepath.Base(src))); err != nil {
			return "", err
		}
	}
	for _, src := range related.Notifications {
		if err := copyFile(src, filepath.Join(base, subNotifications, filepath.Base(src))); err != nil {
			return "", err
		}
	}

	entry := models.LedgerEntry{
		ID:                record.ID,
		InvoiceNumber:     inv.Number,
		InvoiceDate:       inv.Date.Format("2006-01-02"),
		PartnerName:       inv.Partner().Name,
		TotalAmount:       inv.TotalAmount,
		HasWithholding:    inv.Withholding.Present,
		WithholdingAmount: inv.Withholding.Amount,
		AddedAt:           time.Now().UTC(),
	}
	if err := w.appendLedgerEntry(inv.ClientName, inv.Direction, inv.Year, entry); err != nil {
		// A failed outcome must not leave a half-archived invoice behind:
		// the caller will retry the whole file.
		w.discard(artifacts)
		return "", err
	}

	w.log.Info().
		Str("client", inv.ClientName).
		Str("direction", string(inv.Direction)).
		Int("year", inv.Year).
		Str("file", doc.FileName).
		Msg("Invoice archived")

	return base, nil
}

// ensureLayout creates the fixed subfolder set for a key. Idempotent.
func (w *Writer) ensureLayout(client string, direction models.Direction, year int) (string, error) {
	const op = "ensureLayout"

	base := filepath.Join(w.root, safeName(client), string(direction), strconv.Itoa(year))
	for _, sub := range subfolders {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
			return "", &WriteError{Op: op, Path: base, Err: err}
		}
	}
	return base, nil
}

// FindRelated locates metadata and notification files next to the invoice
// whose names start with the invoice's filename stem.
func FindRelated(doc *models.RawDocument) RelatedFiles {
	var related RelatedFiles

	entries, err := os.ReadDir(filepath.Dir(doc.Path))
	if err != nil {
		return related
	}

	stem := doc.Stem()
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == doc.FileName {
			continue
		}
		name := entry.Name()
		if len(name) < len(stem) || name[:len(stem)] != stem {
			continue
		}
		full := filepath.Join(filepath.Dir(doc.Path), name)
		switch {
		case classify.IsMetadata(name):
			related.Metadata = append(related.Metadata, full)
		case classify.IsNotification(name):
			related.Notifications = append(related.Notifications, full)
		}
	}
	return related
}

// discard removes already-written artifacts after a later step failed.
// Best effort: a leftover file is only noise, the record is what counts.
func (w *Writer) discard(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			w.log.Warn().Str("path", path).Err(err).Msg("Failed to remove partial artifact")
		}
	}
}

func baseNames(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names
}

// safeName strips filesystem-hostile characters and bounds the length of
// a path component.
func safeName(name string) string {
	cleaned := unsafeChars.ReplaceAllString(name, "_")
	if len(cleaned) > maxNameLen {
		cleaned = cleaned[:maxNameLen]
	}
	return cleaned
}

// atomicWrite writes data to path through a temp file and rename, so a
// crash never leaves a half-written artifact in place.
func atomicWrite(path string, data []byte) error {
	const op = "atomicWrite"

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return &WriteError{Op: op, Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Op: op, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Op: op, Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Op: op, Path: path, Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	const op = "copyFile"

	data, err := os.ReadFile(src)
	if err != nil {
		return &WriteError{Op: op, Path: src, Err: err}
	}
	if err := atomicWrite(dst, data); err != nil {
		return err
	}
	return nil
}

func fmtKey(client string, direction models.Direction, year int) string {
	return fmt.Sprintf("%s/%s/%d", client, direction, year)
}
