// Package invoice extracts structured records from decoded FatturaPA XML
// payloads. Parsing is tolerant by design: namespaced and unprefixed
// schema variants are handled uniformly, every optional subtree follows an
// explicit fallback chain, and an absent field never aborts extraction.
package invoice

import (
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"fatturex/pkg/models"
)

// invoiceDateFormat is the fixed FatturaPA date format.
const invoiceDateFormat = "2006-01-02"

// Parse extracts an InvoiceRecord from a decoded XML payload and resolves
// its direction against the portfolio. Returns ErrNotInPortfolio (via
// errors.Is) when neither party matches a configured client.
func Parse(payload []byte, portfolio models.Portfolio) (*models.InvoiceRecord, error) {
	const op = "Parse"

	record, err := ParseDocument(payload)
	if err != nil {
		return nil, err
	}

	direction, clientName, ok := resolveDirection(record.Supplier, record.Customer, portfolio)
	if !ok {
		return nil, newParseError(op, ErrNotInPortfolio, "")
	}
	record.Direction = direction
	record.ClientName = clientName
	return record, nil
}

// ParseDocument extracts the invoice fields without resolving direction,
// for callers that only want to look at a document.
func ParseDocument(payload []byte) (*models.InvoiceRecord, error) {
	const op = "ParseDocument"

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return nil, newParseError(op, ErrMalformedXML, err.Error())
	}
	root := doc.Root()
	if root == nil {
		return nil, newParseError(op, ErrMalformedXML, "document has no root element")
	}
	stripNamespaces(root)

	header := root.FindElement("FatturaElettronicaHeader")
	body := root.FindElement("FatturaElettronicaBody")
	if header == nil || body == nil {
		return nil, newParseError(op, ErrNotFatturaPA, "missing header or body")
	}

	supplierNode := header.FindElement("CedentePrestatore")
	customerNode := header.FindElement("CessionarioCommittente")
	if supplierNode == nil || customerNode == nil {
		return nil, newParseError(op, ErrNotFatturaPA, "missing party sections")
	}

	record := &models.InvoiceRecord{
		Number:       findTextOr(body, ".//DatiGeneraliDocumento/Numero", models.UnavailableID),
		DocumentType: findText(body, ".//DatiGeneraliDocumento/TipoDocumento"),
		TotalAmount:  parseAmount(findText(body, ".//ImportoTotaleDocumento")),
		Supplier:     parseParty(supplierNode),
		Customer:     parseParty(customerNode),
	}
	record.Date, record.Year = parseInvoiceDate(findText(body, ".//DatiGeneraliDocumento/Data"))
	record.Withholding = parseWithholding(body)
	record.SocialFund = parseSocialFund(body)

	return record, nil
}

// resolveDirection matches both parties against the portfolio: a supplier
// match means the client issued the invoice, a customer match means the
// client received it.
func resolveDirection(supplier, customer models.Party, portfolio models.Portfolio) (models.Direction, string, bool) {
	if name, ok := portfolio.Lookup(supplier.FiscalID()); ok {
		return models.DirectionIssued, name, true
	}
	if name, ok := portfolio.Lookup(customer.FiscalID()); ok {
		return models.DirectionReceived, name, true
	}
	return "", "", false
}

// parseParty extracts identity and display name from a CedentePrestatore
// or CessionarioCommittente section.
func parseParty(node *etree.Element) models.Party {
	return models.Party{
		Name:      partyDisplayName(node.FindElement(".//DatiAnagrafici/Anagrafica")),
		VATNumber: findTextOr(node, ".//DatiAnagrafici/IdFiscaleIVA/IdCodice", models.UnavailableID),
		TaxCode:   findTextOr(node, ".//DatiAnagrafici/CodiceFiscale", models.UnavailableID),
	}
}

// partyDisplayName prefers the company denomination, falls back to
// first+last name, then to the missing-data sentinel.
func partyDisplayName(anagrafica *etree.Element) string {
	if anagrafica == nil {
		return models.MissingPartyName
	}
	if denominazione := findText(anagrafica, "Denominazione"); denominazione != "" {
		return denominazione
	}
	nome := findText(anagrafica, "Nome")
	cognome := findText(anagrafica, "Cognome")
	if nome != "" && cognome != "" {
		return nome + " " + cognome
	}
	return models.MissingPartyName
}

// parseInvoiceDate parses the fixed-format invoice date. A missing or
// unparseable date falls back to today, keeping the document archivable
// at the cost of exact dating.
func parseInvoiceDate(text string) (time.Time, int) {
	if text != "" {
		if parsed, err := time.Parse(invoiceDateFormat, text); err == nil {
			return parsed, parsed.Year()
		}
	}
	now := time.Now()
	return now, now.Year()
}

func parseWithholding(body *etree.Element) models.Withholding {
	node := body.FindElement(".//DatiGeneraliDocumento/DatiRitenuta")
	if node == nil {
		return models.Withholding{Kind: models.UnavailableID}
	}
	return models.Withholding{
		Present: true,
		Amount:  parseAmount(findText(node, "ImportoRitenuta")),
		Kind:    findTextOr(node, "TipoRitenuta", models.UnavailableID),
	}
}

func parseSocialFund(body *etree.Element) models.SocialFund {
	node := body.FindElement(".//DatiGeneraliDocumento/DatiCassaPrevidenziale")
	if node == nil {
		return models.SocialFund{}
	}
	return models.SocialFund{
		Present: true,
		Amount:  parseAmount(findText(node, "ImportoContributoCassa")),
	}
}

// parseAmount parses a monetary value accepting both dot and comma as
// decimal separator. Unparseable input yields zero.
func parseAmount(text string) decimal.Decimal {
	if text == "" {
		return decimal.Zero
	}
	normalized := strings.ReplaceAll(text, ",", ".")
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// stripNamespaces removes the namespace prefix from every element so
// namespaced and unprefixed schema variants traverse identically.
func stripNamespaces(el *etree.Element) {
	el.Space = ""
	for _, child := range el.ChildElements() {
		stripNamespaces(child)
	}
}

// findText returns the trimmed text of the first element at path, or "".
func findText(el *etree.Element, path string) string {
	found := el.FindElement(path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// findTextOr returns the trimmed text at path, or fallback when absent.
func findTextOr(el *etree.Element, path string, fallback string) string {
	if text := findText(el, path); text != "" {
		return text
	}
	return fallback
}
