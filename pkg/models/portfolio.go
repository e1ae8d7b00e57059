package models

// Portfolio maps tax identifiers (VAT number or tax code) to the name of
// the portfolio client they belong to. Only invoices touching a portfolio
// client are archived.
type Portfolio map[string]string

// Lookup resolves a fiscal identity to a client name.
func (p Portfolio) Lookup(fiscalID string) (string, bool) {
	if fiscalID == "" || fiscalID == UnavailableID {
		return "", false
	}
	name, ok := p[fiscalID]
	return name, ok
}
