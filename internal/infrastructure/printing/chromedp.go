package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
	minFooterMarginMM    = 10
)

// ChromedpConfig configures the headless Chrome renderer
type ChromedpConfig struct {
	DefaultTimeout time.Duration
	// RemoteURL is the DevTools websocket of an already running browser.
	// Empty launches a local headless Chrome on first use.
	RemoteURL string
	// NoSandbox is needed when Chrome runs as root, e.g. in containers
	NoSandbox bool
	Scale     float64
	Logger    *zap.Logger
}

// ChromedpRenderer prints invoice documents to PDF through the Chrome
// DevTools protocol. One browser allocator is shared by every render; each
// render gets its own tab.
type ChromedpRenderer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromedpRenderer(config *ChromedpConfig) (*ChromedpRenderer, error) {
	if config == nil {
		config = &ChromedpConfig{}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	if config.Scale < 0.1 || config.Scale > 2 {
		return nil, fmt.Errorf("chromedp scale must be between 0.1 and 2, got %v", config.Scale)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	r := &ChromedpRenderer{config: config, logger: config.Logger}
	if config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
		return r, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r, nil
}

// Render loads req.HTML into a blank tab and prints it
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	started := time.Now()

	timeout := cmpOr(req.Timeout, r.config.DefaultTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// tabs hang off the allocator, so cancellation of ctx is forwarded
	tab, closeTab := chromedp.NewContext(r.allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	defer closeTab()
	defer context.AfterFunc(ctx, closeTab)()

	document := wrapDocument(req)
	params := r.printOptions(req)

	var pdf []byte
	err := chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, document).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) (err error) {
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.String("title", req.Title), zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	result := &RenderResult{PDFData: pdf, PageCount: estimatePageCount(pdf), RenderDuration: time.Since(started)}
	r.logger.Info("PDF rendered",
		zap.String("title", req.Title),
		zap.Int("bytes", len(pdf)),
		zap.Int("pages", result.PageCount),
		zap.Duration("duration", result.RenderDuration))
	return result, nil
}

func validateRequest(req *RenderRequest) error {
	switch {
	case req == nil:
		return NewRenderError(ErrCodeInvalidHTML, "render request is nil", nil)
	case strings.TrimSpace(req.HTML) == "":
		return NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	case !req.PaperSize.IsValid():
		return NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(req.PaperSize), nil)
	}
	return nil
}

// printOptions converts req into Page.printToPDF arguments, which are in
// inches
func (r *ChromedpRenderer) printOptions(req *RenderRequest) *page.PrintToPDFParams {
	width, height := req.PaperSize.Dimensions()
	p := page.PrintToPDF().
		WithPaperWidth(mmToInches(width)).
		WithPaperHeight(mmToInches(height)).
		WithMarginTop(mmToInches(req.Margins.Top)).
		WithMarginRight(mmToInches(req.Margins.Right)).
		WithMarginBottom(mmToInches(req.Margins.Bottom)).
		WithMarginLeft(mmToInches(req.Margins.Left)).
		WithScale(r.config.Scale).
		WithLandscape(req.Landscape).
		WithPrintBackground(true)

	if req.FooterHTML != "" {
		// an empty header suppresses Chrome's date and title line
		p = p.WithDisplayHeaderFooter(true).
			WithHeaderTemplate("<span></span>").
			WithFooterTemplate(req.FooterHTML).
			WithMarginBottom(max(p.MarginBottom, mmToInches(minFooterMarginMM)))
	}
	return p
}

// wrapDocument turns a fragment into a UTF-8 document. Full documents are
// returned as is.
func wrapDocument(req *RenderRequest) string {
	lower := strings.ToLower(req.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return req.HTML
	}
	title := ""
	if req.Title != "" {
		title = "<title>" + html.EscapeString(req.Title) + "</title>"
	}
	return `<!DOCTYPE html><html><head><meta charset="UTF-8">` + title + "</head><body>" + req.HTML + "</body></html>"
}

// Close shuts down the browser
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// estimatePageCount counts page objects, excluding the page tree root
func estimatePageCount(pdf []byte) int {
	return max(bytes.Count(pdf, []byte("/Type /Page"))-bytes.Count(pdf, []byte("/Type /Pages")), 1)
}

func cmpOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
