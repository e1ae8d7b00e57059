// Package envelope extracts plain XML payloads from electronic-invoice
// files. Signed CAdES (.p7m) envelopes are opened through an ordered list
// of independent strategies; the first one producing content with an XML
// prologue wins. No signature trust chain is verified, only the payload
// is extracted.
package envelope

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fatturex/internal/logger"
	"fatturex/pkg/models"
)

// xmlProlog is the marker every acceptable payload must contain.
var xmlProlog = []byte("<?xml")

// utf8BOM may precede the prologue in files exported by some portals.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Strategy is one independent way of opening an envelope. TryDecode
// returns the candidate payload, or nil along with the ordered messages
// of every attempt it made. A strategy is never invoked twice for the
// same file.
type Strategy interface {
	Name() string
	TryDecode(ctx context.Context, doc *models.RawDocument) ([]byte, []string)
}

// Config holds decoder settings.
type Config struct {
	// OpenSSLPath is the openssl binary used by the external-tool
	// strategy. Default: "openssl" from PATH.
	OpenSSLPath string

	// Timeout bounds each external subprocess invocation.
	// Default: 60 seconds.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OpenSSLPath: "openssl",
		Timeout:     60 * time.Second,
	}
}

// Decoder runs the ordered strategy list. It keeps no state between
// calls and is safe for concurrent use across files.
type Decoder struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewDecoder builds a decoder with the standard strategy order:
// structured CMS parse first, then the openssl command-line tool.
func NewDecoder(cfg Config) *Decoder {
	if cfg.OpenSSLPath == "" {
		cfg.OpenSSLPath = "openssl"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Decoder{
		strategies: []Strategy{
			pkcs7Strategy{},
			newOpenSSLStrategy(cfg.OpenSSLPath, cfg.Timeout),
		},
		log: logger.WithComponent("envelope"),
	}
}

// Decode extracts the XML payload from a raw document. Inputs that
// already start with the XML prologue pass through unchanged with
// strategy "DIRECT". On total failure the returned error is a
// *DecodeError carrying every attempt message in order.
func (d *Decoder) Decode(ctx context.Context, doc *models.RawDocument) (*models.DecodedEnvelope, error) {
	if payload := directPayload(doc.Content); payload != nil {
		return &models.DecodedEnvelope{
			Source:   doc,
			Payload:  payload,
			Strategy: StrategyDirect,
		}, nil
	}

	var attempts []string
	for _, strategy := range d.strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", strategy.Name(), err))
			break
		}

		candidate, tried := strategy.TryDecode(ctx, doc)
		attempts = append(attempts, tried...)
		if candidate == nil {
			continue
		}

		payload := extractPayload(candidate)
		if payload == nil {
			attempts = append(attempts, fmt.Sprintf("%s: output has no XML prologue", strategy.Name()))
			continue
		}

		d.log.Debug().
			Str("file", doc.FileName).
			Str("strategy", strategy.Name()).
			Int("payload_size", len(payload)).
			Msg("Envelope decoded")

		return &models.DecodedEnvelope{
			Source:   doc,
			Payload:  payload,
			Strategy: strategy.Name(),
			Attempts: attempts,
		}, nil
	}

	d.log.Warn().
		Str("file", doc.FileName).
		Int("attempts", len(attempts)).
		Msg("All decode strategies exhausted")

	return nil, &DecodeError{FileName: doc.FileName, Attempts: attempts}
}

// directPayload returns the content from the XML prologue onward when the
// input is already a plain document, nil otherwise.
func directPayload(content []byte) []byte {
	trimmed := bytes.TrimPrefix(content, utf8BOM)
	trimmed = bytes.TrimLeft(trimmed, " \t\r\n")
	if bytes.HasPrefix(trimmed, xmlProlog) {
		return trimmed
	}
	return nil
}

// extractPayload slices a strategy's output from the XML prologue marker,
// or returns nil when the marker is absent.
func extractPayload(out []byte) []byte {
	idx := bytes.Index(out, xmlProlog)
	if idx < 0 {
		return nil
	}
	return out[idx:]
}
