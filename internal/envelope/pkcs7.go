package envelope

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/smallstep/pkcs7"

	"fatturex/pkg/models"
)

// pemArmor strips PEM boundary lines and whitespace so a base64 body can
// be recovered from armored or mail-style envelopes.
var pemArmor = regexp.MustCompile(`(?m)^-----[^\n]+-----$|\s`)

// pkcs7Strategy opens the CMS SignedData structure in-process and pulls
// out the encapsulated content. Signatures are not verified.
type pkcs7Strategy struct{}

func (pkcs7Strategy) Name() string { return StrategyPKCS7 }

func (pkcs7Strategy) TryDecode(_ context.Context, doc *models.RawDocument) ([]byte, []string) {
	var attempts []string

	// First pass: the raw bytes are DER.
	content, err := parseCMS(doc.Content)
	if err == nil {
		return content, attempts
	}
	attempts = append(attempts, fmt.Sprintf("%s DER: %v", StrategyPKCS7, err))

	// Second pass: some portals deliver the envelope base64-encoded,
	// with or without PEM armor.
	stripped := pemArmor.ReplaceAll(doc.Content, nil)
	der, decErr := base64.StdEncoding.DecodeString(string(stripped))
	if decErr != nil {
		attempts = append(attempts, fmt.Sprintf("%s base64: %v", StrategyPKCS7, decErr))
		return nil, attempts
	}

	content, err = parseCMS(der)
	if err != nil {
		attempts = append(attempts, fmt.Sprintf("%s base64 DER: %v", StrategyPKCS7, err))
		return nil, attempts
	}
	return content, attempts
}

func parseCMS(der []byte) ([]byte, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, err
	}
	if len(p7.Content) == 0 {
		return nil, fmt.Errorf("empty encapsulated content")
	}
	return p7.Content, nil
}
