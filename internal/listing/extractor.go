// Package listing splits a job board page into ordered listing fragments.
package listing

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// Config selects the listing groups and items on the board page.
type Config struct {
	// GroupSelectors are evaluated in order; each may match several groups.
	GroupSelectors []string
	// MaxGroups caps the number of groups kept. Zero keeps every match.
	MaxGroups int
	// ItemSelector selects listings inside a group.
	ItemSelector string
}

// Extractor implements jobs.ListingExtractor with goquery.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Extractor, applying the US-RSE board defaults for empty fields.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if len(cfg.GroupSelectors) == 0 {
		cfg.GroupSelectors = []string{"ol"}
	}
	if strings.TrimSpace(cfg.ItemSelector) == "" {
		cfg.ItemSelector = "li"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract returns the items of every selected group, groups in selector and
// document order, items in document order within a group.
func (e *Extractor) Extract(markup string) ([]jobs.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: parse board markup: %w", jobs.ErrFetch, err)
	}

	groups := e.selectGroups(doc)
	if e.cfg.MaxGroups > 0 && len(groups) < e.cfg.MaxGroups {
		e.logger.Warn("fewer listing groups than configured",
			zap.Int("found", len(groups)),
			zap.Int("expected", e.cfg.MaxGroups),
		)
	}

	var listings []jobs.RawListing
	for gi, group := range groups {
		items := group.Find(e.cfg.ItemSelector)
		e.logger.Debug("listing group found", zap.Int("group", gi), zap.Int("items", items.Length()))
		items.Each(func(i int, item *goquery.Selection) {
			html, err := goquery.OuterHtml(item)
			if err != nil {
				e.logger.Warn("render listing fragment failed", zap.Int("group", gi), zap.Int("index", i), zap.Error(err))
				return
			}
			listings = append(listings, jobs.RawListing{Group: gi, Index: i, HTML: html})
		})
	}
	return listings, nil
}

func (e *Extractor) selectGroups(doc *goquery.Document) []*goquery.Selection {
	var groups []*goquery.Selection
	for _, sel := range e.cfg.GroupSelectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			groups = append(groups, s)
		})
	}
	if e.cfg.MaxGroups > 0 && len(groups) > e.cfg.MaxGroups {
		groups = groups[:e.cfg.MaxGroups]
	}
	return groups
}
