// Package classify categorizes input files by name before any expensive
// decoding work. Classification looks only at the file name and never at
// the content.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Category is the kind of artifact a file name indicates.
type Category string

const (
	// CategoryInvoice marks a candidate invoice document (.xml or .p7m),
	// not yet decoded or validated.
	CategoryInvoice Category = "INVOICE"

	// CategoryMetadata marks an SDI metadata companion file.
	CategoryMetadata Category = "METADATA"

	// CategoryNotification marks an SDI receipt or notification file.
	CategoryNotification Category = "NOTIFICATION"

	// CategoryUnsupported marks everything else.
	CategoryUnsupported Category = "UNSUPPORTED"
)

var (
	// metadataPattern matches the SDI metadata naming convention, either
	// the _MT_ marker or the word "metadato" in any casing.
	metadataPattern = regexp.MustCompile(`(?i)(_MT_|metadato)`)

	// notificationPattern matches SDI receipt markers: NS (scarto),
	// RC (consegna), MC (mancata consegna), NE (esito), DT (decorrenza
	// termini), AT (attestazione), SE (esito committente).
	notificationPattern = regexp.MustCompile(`(?i)_(?:NS|RC|MC|NE|DT|AT|SE)_`)
)

// supportedExtensions are the document extensions accepted as invoice
// candidates.
var supportedExtensions = map[string]bool{
	".xml": true,
	".p7m": true,
}

// Classify determines the category of a file from its name alone.
// Priority is fixed: metadata beats notification beats extension, so a
// name matching both conventions is always routed to the metadata path.
func Classify(filename string) Category {
	name := filepath.Base(filename)
	switch {
	case metadataPattern.MatchString(name):
		return CategoryMetadata
	case notificationPattern.MatchString(name):
		return CategoryNotification
	case supportedExtensions[strings.ToLower(filepath.Ext(name))]:
		return CategoryInvoice
	default:
		return CategoryUnsupported
	}
}

// IsMetadata reports whether the file name follows the metadata convention.
func IsMetadata(filename string) bool {
	return metadataPattern.MatchString(filepath.Base(filename))
}

// IsNotification reports whether the file name follows the notification
// convention.
func IsNotification(filename string) bool {
	return notificationPattern.MatchString(filepath.Base(filename))
}
