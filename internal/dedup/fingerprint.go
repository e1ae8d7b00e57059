// Package dedup provides content-addressed duplicate detection for
// processed invoices. A fingerprint combines the whole-file hash with a
// whitespace-normalized content hash so a re-serialized but semantically
// identical document still collides with its original.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var whitespace = regexp.MustCompile(`\s+`)

// contentHashLen truncates the normalized-content hash; 16 hex chars is
// plenty for collision detection within one archive.
const contentHashLen = 16

// Fingerprint is the composite identity of one semantic document instance.
type Fingerprint struct {
	// FileHash is the SHA-256 of the raw file bytes.
	FileHash string

	// ContentHash is the truncated SHA-256 of the decoded payload with
	// all whitespace stripped.
	ContentHash string
}

// NewFingerprint computes the fingerprint of a raw file and its decoded
// payload.
func NewFingerprint(raw, payload []byte) Fingerprint {
	fileSum := sha256.Sum256(raw)
	contentSum := sha256.Sum256(whitespace.ReplaceAll(payload, nil))
	return Fingerprint{
		FileHash:    hex.EncodeToString(fileSum[:]),
		ContentHash: hex.EncodeToString(contentSum[:])[:contentHashLen],
	}
}

// Key returns the composite registration key.
func (f Fingerprint) Key() string {
	return f.FileHash + "_" + f.ContentHash
}
