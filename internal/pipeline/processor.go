// Package pipeline sequences classification, decoding, parsing,
// deduplication and archival for a batch of input files. Files are
// independent and processed by a bounded worker pool; a failure on one
// file never aborts the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fatturex/internal/archive"
	"fatturex/internal/classify"
	"fatturex/internal/dedup"
	"fatturex/internal/envelope"
	"fatturex/internal/invoice"
	"fatturex/internal/logger"
	"fatturex/pkg/models"
)

// Config wires the processor's collaborators. Index ownership is
// explicit: the processor uses the injected index and never creates one,
// so batch runs are independently testable.
type Config struct {
	Portfolio models.Portfolio
	Decoder   *envelope.Decoder
	Index     dedup.Index
	Writer    *archive.Writer
	Workers   int
}

// Processor drives each file through
// classify → decode → parse → dedup → archive.
type Processor struct {
	portfolio models.Portfolio
	decoder   *envelope.Decoder
	index     dedup.Index
	writer    *archive.Writer
	workers   int
	log       zerolog.Logger
}

// New builds a processor from its collaborators.
func New(cfg Config) *Processor {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		portfolio: cfg.Portfolio,
		decoder:   cfg.Decoder,
		index:     cfg.Index,
		writer:    cfg.Writer,
		workers:   workers,
		log:       logger.WithComponent("pipeline"),
	}
}

// Run processes every path and returns exactly one outcome per input
// file, in input order. Canceling the context stops dispatching new
// files; in-flight files finish or fail naturally.
func (p *Processor) Run(ctx context.Context, paths []string) []models.ProcessingOutcome {
	outcomes := make([]models.ProcessingOutcome, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for i, path := range paths {
		if ctx.Err() != nil {
			now := time.Now().UTC()
			outcomes[i] = models.ProcessingOutcome{
				FileName:   filepath.Base(path),
				Status:     models.StatusFailed,
				Detail:     "batch canceled before dispatch",
				StartedAt:  now,
				FinishedAt: now,
			}
			continue
		}
		g.Go(func() error {
			outcomes[i] = p.processOne(ctx, path)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// Stats aggregates outcomes for the reporting layer.
func Stats(outcomes []models.ProcessingOutcome) models.RunStats {
	var stats models.RunStats
	for _, o := range outcomes {
		stats.Add(o)
	}
	return stats
}

// processOne handles a single file. All errors are captured in the
// outcome; a panic in any stage is converted to a failed outcome.
func (p *Processor) processOne(ctx context.Context, path string) (outcome models.ProcessingOutcome) {
	outcome = models.ProcessingOutcome{
		FileName:  filepath.Base(path),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = models.StatusFailed
			outcome.Detail = fmt.Sprintf("panic: %v", r)
		}
		outcome.FinishedAt = time.Now().UTC()
	}()

	category := classify.Classify(outcome.FileName)
	outcome.Category = string(category)

	switch category {
	case classify.CategoryMetadata, classify.CategoryNotification:
		outcome.Status = models.StatusSkippedUnsupported
		outcome.Detail = "companion file, archived alongside its invoice"
		return outcome
	case classify.CategoryUnsupported:
		outcome.Status = models.StatusSkippedUnsupported
		outcome.Detail = "unsupported file type"
		return outcome
	}

	content, err := os.ReadFile(path)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Detail = fmt.Sprintf("read failed: %v", err)
		return outcome
	}
	doc := models.NewRawDocument(path, content)

	env, err := p.decoder.Decode(ctx, doc)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Detail = "decode failed"
		var decodeErr *envelope.DecodeError
		if errors.As(err, &decodeErr) {
			outcome.Attempts = decodeErr.Attempts
		}
		p.log.Warn().Str("file", doc.FileName).Err(err).Msg("Decode failed")
		return outcome
	}
	outcome.Strategy = env.Strategy

	record, err := invoice.Parse(env.Payload, p.portfolio)
	if err != nil {
		if errors.Is(err, invoice.ErrNotInPortfolio) {
			outcome.Status = models.StatusSkippedNotInPortfolio
			outcome.Detail = "no party matches the portfolio"
			return outcome
		}
		outcome.Status = models.StatusFailed
		outcome.Detail = fmt.Sprintf("parse failed: %v", err)
		p.log.Warn().Str("file", doc.FileName).Err(err).Msg("Parse failed")
		return outcome
	}
	record.FileName = doc.FileName
	outcome.ClientName = record.ClientName
	outcome.Year = record.Year

	fp := dedup.NewFingerprint(doc.Content, env.Payload)
	duplicate, err := p.index.CheckAndRegister(ctx, fp, doc.FileName)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Detail = fmt.Sprintf("dedup index failed: %v", err)
		return outcome
	}
	if duplicate {
		outcome.Status = models.StatusSkippedDuplicate
		outcome.Detail = fmt.Sprintf("duplicate of fingerprint %s", fp.Key())
		return outcome
	}

	if _, err := p.writer.Archive(env, record, fp); err != nil {
		// The registration must not outlive a failed archive write, or a
		// durable index would report every retry as a duplicate. Rollback
		// runs even when the batch context is already canceled.
		if rmErr := p.index.Remove(context.WithoutCancel(ctx), fp); rmErr != nil {
			p.log.Error().Str("file", doc.FileName).Err(rmErr).
				Msg("Failed to roll back fingerprint registration")
		}
		outcome.Status = models.StatusFailed
		outcome.Detail = fmt.Sprintf("archive failed: %v", err)
		p.log.Error().Str("file", doc.FileName).Err(err).Msg("Archive failed")
		return outcome
	}

	outcome.Status = models.StatusArchived
	p.log.Debug().
		Str("file", doc.FileName).
		Str("client", record.ClientName).
		Str("strategy", env.Strategy).
		Msg("File archived")
	return outcome
}

// FindInputFiles walks an input folder and returns every regular file,
// sorted by path for deterministic dispatch order.
func FindInputFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
