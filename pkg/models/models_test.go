package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawDocument(t *testing.T) {
	doc := NewRawDocument("/in/IT01234567890_00001.XML.P7M", []byte("abc"))

	assert.Equal(t, "IT01234567890_00001.XML.P7M", doc.FileName)
	assert.Equal(t, ".p7m", doc.Extension)
	assert.Equal(t, int64(3), doc.Size)
	assert.Equal(t, "IT01234567890_00001.XML", doc.Stem())
}

func TestPartyFiscalID(t *testing.T) {
	assert.Equal(t, "01234567890", Party{VATNumber: "01234567890", TaxCode: "RSSMRA80A01H501U"}.FiscalID())
	assert.Equal(t, "RSSMRA80A01H501U", Party{VATNumber: UnavailableID, TaxCode: "RSSMRA80A01H501U"}.FiscalID())
	assert.Equal(t, UnavailableID, Party{}.FiscalID())
}

func TestPortfolioLookup(t *testing.T) {
	p := Portfolio{"01234567890": "STUDIO_ROSSI"}

	name, ok := p.Lookup("01234567890")
	assert.True(t, ok)
	assert.Equal(t, "STUDIO_ROSSI", name)

	_, ok = p.Lookup("")
	assert.False(t, ok, "an empty identity must never match")
	_, ok = p.Lookup(UnavailableID)
	assert.False(t, ok, "the unavailable sentinel must never match")
}

func TestInvoicePartner(t *testing.T) {
	record := InvoiceRecord{
		Supplier: Party{Name: "Fornitore"},
		Customer: Party{Name: "Cliente"},
	}

	record.Direction = DirectionIssued
	assert.Equal(t, "Cliente", record.Partner().Name)

	record.Direction = DirectionReceived
	assert.Equal(t, "Fornitore", record.Partner().Name)
}

func TestOutcomeStatusIsSkip(t *testing.T) {
	assert.True(t, StatusSkippedDuplicate.IsSkip())
	assert.True(t, StatusSkippedUnsupported.IsSkip())
	assert.True(t, StatusSkippedNotInPortfolio.IsSkip())
	assert.False(t, StatusArchived.IsSkip())
	assert.False(t, StatusFailed.IsSkip())
}
