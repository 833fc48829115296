package headless

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

const defaultMinBody = 2048

var shellMarkers = []string{
	`id="__next"`,
	`id="root"`,
	`id="app"`,
	"data-reactroot",
}

// Auto renders pages with a plain fetch and promotes to the browser only when
// the fetched markup looks like a client-rendered shell.
type Auto struct {
	static  *Static
	browser jobs.PageRenderer
	minBody int
	logger  *zap.Logger
}

// NewAuto builds an Auto renderer. minBody <= 0 selects the default threshold.
func NewAuto(fetcher jobs.MarkupFetcher, browser jobs.PageRenderer, minBody int, logger *zap.Logger) *Auto {
	if minBody <= 0 {
		minBody = defaultMinBody
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auto{
		static:  NewStatic(fetcher),
		browser: browser,
		minBody: minBody,
		logger:  logger,
	}
}

// Render tries the static fetch first.
func (a *Auto) Render(ctx context.Context, url string, headless bool) (string, error) {
	markup, err := a.static.Render(ctx, url, headless)
	switch {
	case err != nil:
		a.logger.Debug("static fetch failed; promoting to browser", zap.String("url", url), zap.Error(err))
	case NeedsBrowser(markup, a.minBody):
		a.logger.Debug("markup looks client-rendered; promoting to browser", zap.String("url", url))
	default:
		return markup, nil
	}
	return a.browser.Render(ctx, url, headless)
}

// NeedsBrowser reports whether markup is empty, carries a single-page-app
// mount point, or is short and mostly script.
func NeedsBrowser(markup string, minBody int) bool {
	if strings.TrimSpace(markup) == "" {
		return true
	}
	for _, marker := range shellMarkers {
		if strings.Contains(markup, marker) {
			return true
		}
	}
	return len(markup) < minBody && scriptShare(strings.ToLower(markup)) >= 25
}

// scriptShare returns the percentage of lower that sits inside script elements.
// An unterminated element runs to the end of the document.
func scriptShare(lower string) int {
	covered := 0
	rest := lower
	for {
		start := strings.Index(rest, "<script")
		if start < 0 {
			break
		}
		rest = rest[start:]
		end := strings.Index(rest, "</script>")
		if end < 0 {
			covered += len(rest)
			break
		}
		end += len("</script>")
		covered += end
		rest = rest[end:]
	}
	return covered * 100 / len(lower)
}
