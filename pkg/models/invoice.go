package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MissingPartyName is the sentinel used when a party carries neither a
// company denomination nor a first/last name pair.
const MissingPartyName = "Dati anagrafici mancanti"

// UnavailableID is the sentinel for an absent VAT number or tax code.
const UnavailableID = "N/D"

// Direction tells whether a portfolio client issued or received an invoice.
type Direction string

const (
	// DirectionIssued marks invoices issued by a portfolio client (fatture emesse).
	DirectionIssued Direction = "EMESSE"

	// DirectionReceived marks invoices received by a portfolio client (fatture ricevute).
	DirectionReceived Direction = "RICEVUTE"
)

// RawDocument is one candidate file as read from disk. Immutable once built.
type RawDocument struct {
	FileName  string
	Path      string
	Content   []byte
	Extension string
	Size      int64
}

// NewRawDocument builds a RawDocument from a path and its content.
func NewRawDocument(path string, content []byte) *RawDocument {
	name := filepath.Base(path)
	return &RawDocument{
		FileName:  name,
		Path:      path,
		Content:   content,
		Extension: strings.ToLower(filepath.Ext(name)),
		Size:      int64(len(content)),
	}
}

// Stem returns the file name without its final extension, used to locate
// co-located metadata and notification files.
func (d *RawDocument) Stem() string {
	return strings.TrimSuffix(d.FileName, filepath.Ext(d.FileName))
}

// DecodedEnvelope is the result of extracting a plain XML payload from a
// raw document, along with decode provenance.
type DecodedEnvelope struct {
	Source   *RawDocument
	Payload  []byte
	Strategy string
	Attempts []string
}

// Party identifies one side of an invoice (cedente/prestatore or
// cessionario/committente).
type Party struct {
	Name      string `json:"denominazione"`
	VATNumber string `json:"partita_iva"`
	TaxCode   string `json:"codice_fiscale"`
}

// FiscalID returns the identity used for portfolio matching: the VAT
// number when present, the tax code as fallback, UnavailableID otherwise.
func (p Party) FiscalID() string {
	if p.VATNumber != "" && p.VATNumber != UnavailableID {
		return p.VATNumber
	}
	if p.TaxCode != "" && p.TaxCode != UnavailableID {
		return p.TaxCode
	}
	return UnavailableID
}

// Withholding carries the DatiRitenuta subtree when present.
type Withholding struct {
	Present bool            `json:"has_ritenuta"`
	Amount  decimal.Decimal `json:"importo_ritenuta"`
	Kind    string          `json:"tipo_ritenuta"`
}

// SocialFund carries the cassa previdenziale contribution when present.
type SocialFund struct {
	Present bool            `json:"has_cassa"`
	Amount  decimal.Decimal `json:"importo_cassa"`
}

// InvoiceRecord is a fully parsed electronic invoice attributed to a
// portfolio client.
type InvoiceRecord struct {
	FileName     string          `json:"file_name"`
	Number       string          `json:"invoice_number"`
	Date         time.Time       `json:"invoice_date"`
	Year         int             `json:"invoice_year"`
	DocumentType string          `json:"document_type,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Supplier     Party           `json:"cedente"`
	Customer     Party           `json:"cessionario"`
	Withholding  Withholding     `json:"ritenuta"`
	SocialFund   SocialFund      `json:"cassa_previdenziale"`
	Direction    Direction       `json:"direction"`
	ClientName   string          `json:"client_name"`
}

// Partner returns the non-portfolio side of the invoice.
func (r *InvoiceRecord) Partner() Party {
	if r.Direction == DirectionIssued {
		return r.Customer
	}
	return r.Supplier
}
