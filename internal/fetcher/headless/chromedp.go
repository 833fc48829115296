// Package headless renders listing pages in a browser via chromedp.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

const defaultNavTimeout = 45 * time.Second

// Config controls the behavior of the renderer.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// Settle is how long to wait after the body is ready for scripts to finish.
	Settle time.Duration
}

// Renderer implements jobs.PageRenderer using chromedp.
type Renderer struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	allocators map[bool]allocator
}

type allocator struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromedp creates a renderer. Browser processes start lazily on first use,
// one allocator per headless mode.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	if cfg.Settle < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		cfg:        cfg,
		logger:     logger,
		allocators: make(map[bool]allocator),
	}, nil
}

// Close cancels every allocator context, shutting the browsers down.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for mode, a := range r.allocators {
		a.cancel()
		delete(r.allocators, mode)
	}
}

// Render navigates to url and returns the rendered DOM. Any navigation, script,
// or HTTP status failure is reported as jobs.ErrRender.
func (r *Renderer) Render(ctx context.Context, url string, headless bool) (string, error) {
	allocCtx := r.allocatorFor(headless)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	taskCtx, cancel := context.WithTimeout(tabCtx, r.navTimeout())
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, err := r.run(taskCtx, url)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", jobs.ErrRender, url, err)
	}
	status := meta.statusOr(http.StatusOK)
	if status >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s: document status %d", jobs.ErrRender, url, status)
	}
	r.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Bool("headless", headless),
		zap.Int("status", status),
		zap.String("document_url", meta.documentURL(url)),
		zap.Duration("duration", time.Since(start)),
	)
	return html, nil
}

func (r *Renderer) allocatorFor(headless bool) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.allocators[headless]; ok {
		return a.ctx
	}
	ctx, cancel := chromedp.NewExecAllocator(context.Background(), r.allocatorOptions(headless)...)
	r.allocators[headless] = allocator{ctx: ctx, cancel: cancel}
	return ctx
}

func (r *Renderer) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

func (r *Renderer) run(ctx context.Context, url string) (string, error) {
	var html string
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.cfg.Settle > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.Settle))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) navTimeout() time.Duration {
	if r.cfg.NavigationTimeout > 0 {
		return r.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

// responseMeta records the status of the main document response.
type responseMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Redirects and frames emit several document responses; the first is the navigation.
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

// documentURL returns the URL the navigation document was served from.
func (m *responseMeta) documentURL(fallback string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.url == "" {
		return fallback
	}
	return m.url
}

func (m *responseMeta) statusOr(fallback int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == 0 {
		return fallback
	}
	return m.status
}
