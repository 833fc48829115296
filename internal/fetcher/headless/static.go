package headless

import (
	"context"
	"fmt"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// Static renders pages with a plain markup fetch, for boards whose listing
// pages need no JavaScript or when no browser is available.
type Static struct {
	fetcher jobs.MarkupFetcher
}

// NewStatic wraps fetcher as a jobs.PageRenderer.
func NewStatic(fetcher jobs.MarkupFetcher) *Static {
	return &Static{fetcher: fetcher}
}

// Render ignores headless and fetches url directly.
func (s *Static) Render(ctx context.Context, url string, _ bool) (string, error) {
	if s.fetcher == nil {
		return "", fmt.Errorf("%w: no fetcher configured", jobs.ErrRender)
	}
	markup, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: %w", jobs.ErrRender, err)
	}
	return markup, nil
}
