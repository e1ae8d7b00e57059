package invoice

import (
	"fmt"

	"github.com/beevik/etree"
)

// Notification is a parsed SDI companion file: a receipt, a notification
// or the metadata file sent along with the invoice.
type Notification struct {
	Kind        string `json:"kind"`
	RootTag     string `json:"root_tag"`
	SDIID       string `json:"identificativo_sdi,omitempty"`
	FileName    string `json:"nome_file,omitempty"`
	FileHash    string `json:"hash_file,omitempty"`
	ReceivedAt  string `json:"data_ora_ricezione,omitempty"`
	DeliveredAt string `json:"data_ora_consegna,omitempty"`
	InvoiceRef  string `json:"riferimento_fattura,omitempty"`
}

// notificationKinds maps SDI root tags to their human-readable names.
var notificationKinds = map[string]string{
	"RicevutaConsegna":                "Ricevuta di Consegna",
	"RC":                              "Ricevuta di Consegna",
	"NotificaEsito":                   "Notifica Esito",
	"NE":                              "Notifica Esito",
	"NotificaMancataConsegna":         "Notifica Mancata Consegna",
	"MC":                              "Notifica Mancata Consegna",
	"RicevutaScarto":                  "Ricevuta Scarto",
	"NS":                              "Ricevuta Scarto",
	"NotificaDecorrenzaTermini":       "Notifica Decorrenza Termini",
	"DT":                              "Notifica Decorrenza Termini",
	"AttestazioneTrasmissioneFattura": "Attestazione Trasmissione",
	"AT":                              "Attestazione Trasmissione",
	"FileMetadati":                    "Metadati Invio File",
	"MT":                              "Metadati Invio File",
}

// ParseNotification extracts the type and references from an SDI receipt
// payload. Unknown root tags still yield a generic notification so the
// file can be archived with its invoice.
func ParseNotification(payload []byte) (*Notification, error) {
	const op = "ParseNotification"

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return nil, newParseError(op, ErrMalformedXML, err.Error())
	}
	root := doc.Root()
	if root == nil {
		return nil, newParseError(op, ErrNotNotification, "document has no root element")
	}
	stripNamespaces(root)

	kind, known := notificationKinds[root.Tag]
	if !known {
		kind = fmt.Sprintf("Ricevuta Generica (%s)", root.Tag)
	}

	return &Notification{
		Kind:        kind,
		RootTag:     root.Tag,
		SDIID:       findText(root, ".//IdentificativoSdI"),
		FileName:    findText(root, ".//NomeFile"),
		FileHash:    findText(root, ".//Hash"),
		ReceivedAt:  findText(root, ".//DataOraRicezione"),
		DeliveredAt: findText(root, ".//DataOraConsegna"),
		InvoiceRef:  findText(root, ".//RiferimentoFattura"),
	}, nil
}
