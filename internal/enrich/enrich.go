// Package enrich fetches a listing's own page and derives its plain text.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// Enricher implements jobs.Enricher. Both steps must succeed; there is no
// partial enrichment.
type Enricher struct {
	renderer jobs.PageRenderer
	text     jobs.TextExtractor
	headless bool
	logger   *zap.Logger
}

// New builds an Enricher.
func New(renderer jobs.PageRenderer, text jobs.TextExtractor, headless bool, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		renderer: renderer,
		text:     text,
		headless: headless,
		logger:   logger,
	}
}

// Enrich renders url and extracts its text. Failures wrap jobs.ErrEnrichment
// and keep the underlying cause (jobs.ErrRender for renderer failures).
func (e *Enricher) Enrich(ctx context.Context, url string) (jobs.Enrichment, error) {
	if e.renderer == nil || e.text == nil {
		return jobs.Enrichment{}, fmt.Errorf("%w: enricher is not configured", jobs.ErrEnrichment)
	}
	markup, err := e.renderer.Render(ctx, url, e.headless)
	if err != nil {
		return jobs.Enrichment{}, fmt.Errorf("%w: %w", jobs.ErrEnrichment, err)
	}
	e.logger.Debug("got source code", zap.String("url", url), zap.Int("bytes", len(markup)))

	text, err := e.text.Extract(markup)
	if err != nil {
		return jobs.Enrichment{}, fmt.Errorf("%w: extract text: %w", jobs.ErrEnrichment, err)
	}
	e.logger.Debug("got text", zap.String("url", url), zap.Int("chars", len(text)))

	return jobs.Enrichment{RawMarkup: markup, PlainText: text}, nil
}
