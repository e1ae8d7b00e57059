package invoice

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fatturex/pkg/models"
)

// invoiceXML builds a minimal FatturaPA document. Optional fragments are
// injected verbatim into DatiGeneraliDocumento.
func invoiceXML(supplierVAT, customerVAT, number, date, total, extra string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<FatturaElettronica versione="FPR12">
  <FatturaElettronicaHeader>
    <CedentePrestatore>
      <DatiAnagrafici>
        <IdFiscaleIVA><IdPaese>IT</IdPaese><IdCodice>%s</IdCodice></IdFiscaleIVA>
        <Anagrafica><Denominazione>Studio Rossi SRL</Denominazione></Anagrafica>
      </DatiAnagrafici>
    </CedentePrestatore>
    <CessionarioCommittente>
      <DatiAnagrafici>
        <IdFiscaleIVA><IdPaese>IT</IdPaese><IdCodice>%s</IdCodice></IdFiscaleIVA>
        <Anagrafica><Nome>Giuseppe</Nome><Cognome>Vizzi</Cognome></Anagrafica>
      </DatiAnagrafici>
    </CessionarioCommittente>
  </FatturaElettronicaHeader>
  <FatturaElettronicaBody>
    <DatiGenerali>
      <DatiGeneraliDocumento>
        <TipoDocumento>TD01</TipoDocumento>
        <Numero>%s</Numero>
        <Data>%s</Data>
        <ImportoTotaleDocumento>%s</ImportoTotaleDocumento>
        %s
      </DatiGeneraliDocumento>
    </DatiGenerali>
  </FatturaElettronicaBody>
</FatturaElettronica>`, supplierVAT, customerVAT, number, date, total, extra))
}

func testPortfolio() models.Portfolio {
	return models.Portfolio{
		"01234567890": "STUDIO_ROSSI",
		"09876543210": "VIZZI_GIUSEPPE",
	}
}

func TestParseIssuedDirection(t *testing.T) {
	payload := invoiceXML("01234567890", "11111111111", "42/A", "2025-03-14", "1220.00", "")

	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)

	assert.Equal(t, models.DirectionIssued, record.Direction)
	assert.Equal(t, "STUDIO_ROSSI", record.ClientName)
	assert.Equal(t, "42/A", record.Number)
	assert.Equal(t, "TD01", record.DocumentType)
	assert.Equal(t, 2025, record.Year)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), record.Date)
	assert.True(t, record.TotalAmount.Equal(decimal.RequireFromString("1220.00")))
	assert.Equal(t, "Studio Rossi SRL", record.Supplier.Name)
	assert.Equal(t, "Giuseppe Vizzi", record.Customer.Name)
}

func TestParseReceivedDirection(t *testing.T) {
	payload := invoiceXML("11111111111", "09876543210", "7", "2025-01-02", "100.00", "")

	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)
	assert.Equal(t, models.DirectionReceived, record.Direction)
	assert.Equal(t, "VIZZI_GIUSEPPE", record.ClientName)
	// The partner of a received invoice is the supplier.
	assert.Equal(t, "Studio Rossi SRL", record.Partner().Name)
}

func TestParseNotInPortfolio(t *testing.T) {
	payload := invoiceXML("11111111111", "22222222222", "7", "2025-01-02", "100.00", "")

	_, err := Parse(payload, testPortfolio())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInPortfolio)
}

func TestParseCommaDecimalAmount(t *testing.T) {
	payload := invoiceXML("01234567890", "11111111111", "1", "2025-01-01", "1234,56", "")

	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)
	assert.True(t, record.TotalAmount.Equal(decimal.RequireFromString("1234.56")))
}

func TestParseNamespacePrefixedDocument(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?>
<p:FatturaElettronica xmlns:p="http://ivaservizi.agenziaentrate.gov.it/docs/xsd/fatture/v1.2">
  <p:FatturaElettronicaHeader>
    <p:CedentePrestatore>
      <p:DatiAnagrafici>
        <p:IdFiscaleIVA><p:IdCodice>01234567890</p:IdCodice></p:IdFiscaleIVA>
        <p:Anagrafica><p:Denominazione>ACME</p:Denominazione></p:Anagrafica>
      </p:DatiAnagrafici>
    </p:CedentePrestatore>
    <p:CessionarioCommittente>
      <p:DatiAnagrafici>
        <p:Anagrafica><p:Denominazione>Cliente</p:Denominazione></p:Anagrafica>
      </p:DatiAnagrafici>
    </p:CessionarioCommittente>
  </p:FatturaElettronicaHeader>
  <p:FatturaElettronicaBody>
    <p:DatiGenerali>
      <p:DatiGeneraliDocumento>
        <p:Numero>99</p:Numero>
        <p:Data>2024-12-31</p:Data>
        <p:ImportoTotaleDocumento>10.00</p:ImportoTotaleDocumento>
      </p:DatiGeneraliDocumento>
    </p:DatiGenerali>
  </p:FatturaElettronicaBody>
</p:FatturaElettronica>`)

	record, err := ParseDocument(payload)
	require.NoError(t, err)
	assert.Equal(t, "99", record.Number)
	assert.Equal(t, "ACME", record.Supplier.Name)
	assert.Equal(t, "01234567890", record.Supplier.VATNumber)
}

func TestParsePartyNameFallbacks(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?>
<FatturaElettronica>
  <FatturaElettronicaHeader>
    <CedentePrestatore>
      <DatiAnagrafici>
        <CodiceFiscale>RSSMRA80A01H501U</CodiceFiscale>
        <Anagrafica><Nome>Mario</Nome><Cognome>Rossi</Cognome></Anagrafica>
      </DatiAnagrafici>
    </CedentePrestatore>
    <CessionarioCommittente>
      <DatiAnagrafici><Anagrafica/></DatiAnagrafici>
    </CessionarioCommittente>
  </FatturaElettronicaHeader>
  <FatturaElettronicaBody>
    <DatiGenerali><DatiGeneraliDocumento><Numero>1</Numero></DatiGeneraliDocumento></DatiGenerali>
  </FatturaElettronicaBody>
</FatturaElettronica>`)

	record, err := ParseDocument(payload)
	require.NoError(t, err)
	assert.Equal(t, "Mario Rossi", record.Supplier.Name)
	assert.Equal(t, models.MissingPartyName, record.Customer.Name)
	// No VAT number, so the tax code is the fiscal identity.
	assert.Equal(t, "RSSMRA80A01H501U", record.Supplier.FiscalID())
	assert.Equal(t, models.UnavailableID, record.Customer.FiscalID())
}

func TestParseDateFallback(t *testing.T) {
	payload := invoiceXML("01234567890", "11111111111", "1", "31/12/2024", "10.00", "")

	before := time.Now()
	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)
	assert.False(t, record.Date.Before(before.Truncate(time.Second)))
	assert.Equal(t, time.Now().Year(), record.Year)
}

func TestParseWithholding(t *testing.T) {
	extra := `<DatiRitenuta>
      <TipoRitenuta>RT01</TipoRitenuta>
      <ImportoRitenuta>244,00</ImportoRitenuta>
    </DatiRitenuta>`
	payload := invoiceXML("01234567890", "11111111111", "1", "2025-01-01", "1220.00", extra)

	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)
	assert.True(t, record.Withholding.Present)
	assert.Equal(t, "RT01", record.Withholding.Kind)
	assert.True(t, record.Withholding.Amount.Equal(decimal.RequireFromString("244.00")))
}

func TestParseWithholdingAbsent(t *testing.T) {
	payload := invoiceXML("01234567890", "11111111111", "1", "2025-01-01", "100.00", "")

	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)
	assert.False(t, record.Withholding.Present)
	assert.True(t, record.Withholding.Amount.IsZero())
	assert.Equal(t, models.UnavailableID, record.Withholding.Kind)
}

func TestParseSocialFund(t *testing.T) {
	extra := `<DatiCassaPrevidenziale>
      <TipoCassa>TC02</TipoCassa>
      <ImportoContributoCassa>48,00</ImportoContributoCassa>
    </DatiCassaPrevidenziale>`
	payload := invoiceXML("01234567890", "11111111111", "1", "2025-01-01", "1248.00", extra)

	record, err := Parse(payload, testPortfolio())
	require.NoError(t, err)
	assert.True(t, record.SocialFund.Present)
	assert.True(t, record.SocialFund.Amount.Equal(decimal.RequireFromString("48.00")))
}

func TestParseMalformedXML(t *testing.T) {
	_, err := ParseDocument([]byte("<broken"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedXML)
}

func TestParseNotFatturaPA(t *testing.T) {
	_, err := ParseDocument([]byte(`<?xml version="1.0"?><SomethingElse/>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFatturaPA)
}

func TestParseNotificationKnownKind(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?>
<ns3:RicevutaConsegna xmlns:ns3="http://www.fatturapa.gov.it/sdi/messaggi/v1.0">
  <IdentificativoSdI>12345678</IdentificativoSdI>
  <NomeFile>IT01234567890_ab123.xml</NomeFile>
  <DataOraRicezione>2025-03-14T10:00:00+01:00</DataOraRicezione>
  <DataOraConsegna>2025-03-14T10:05:00+01:00</DataOraConsegna>
</ns3:RicevutaConsegna>`)

	notification, err := ParseNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, "Ricevuta di Consegna", notification.Kind)
	assert.Equal(t, "RicevutaConsegna", notification.RootTag)
	assert.Equal(t, "12345678", notification.SDIID)
	assert.Equal(t, "IT01234567890_ab123.xml", notification.FileName)
	assert.Equal(t, "2025-03-14T10:05:00+01:00", notification.DeliveredAt)
}

func TestParseNotificationMetadataFile(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?>
<ns2:FileMetadati xmlns:ns2="http://www.fatturapa.gov.it/sdi/messaggi/v1.0">
  <IdentificativoSdI>12345678</IdentificativoSdI>
  <NomeFile>IT01234567890_ab123.xml</NomeFile>
  <Hash>abc123</Hash>
</ns2:FileMetadati>`)

	metadata, err := ParseNotification(payload)
	require.NoError(t, err)
	// A metadata companion has its own label, not the receipt fallback.
	assert.Equal(t, "Metadati Invio File", metadata.Kind)
	assert.Equal(t, "FileMetadati", metadata.RootTag)
	assert.Equal(t, "abc123", metadata.FileHash)
}

func TestParseNotificationGenericFallback(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?><EsitoSconosciuto><IdentificativoSdI>9</IdentificativoSdI></EsitoSconosciuto>`)

	notification, err := ParseNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, "Ricevuta Generica (EsitoSconosciuto)", notification.Kind)
	assert.Equal(t, "9", notification.SDIID)
}

func TestParseNotificationMalformed(t *testing.T) {
	_, err := ParseNotification([]byte("<broken"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedXML)
}
