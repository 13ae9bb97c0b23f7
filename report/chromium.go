package report

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chromium prints HTML to PDF with a local headless Chrome.
type Chromium struct {
	execPath string
	timeout  time.Duration
	paper    Paper
}

// NewChromium returns a converter. An empty execPath lets chromedp locate the browser.
func NewChromium(execPath string) *Chromium {
	return &Chromium{execPath: execPath, timeout: 45 * time.Second, paper: Letter}
}

func (c *Chromium) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// Ping starts and stops a browser.
func (c *Chromium) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	allocCtx, allocCancel := c.allocator(ctx)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	return chromedp.Run(browserCtx, chromedp.Navigate("about:blank"))
}

// RenderHTML loads html into a blank page and prints it.
func (c *Chromium) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	allocCtx, allocCancel := c.allocator(ctx)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(c.paper.Width).
				WithPaperHeight(c.paper.Height).
				WithMarginTop(c.paper.MarginTop).
				WithMarginBottom(c.paper.MarginBottom).
				WithMarginLeft(c.paper.MarginLeft).
				WithMarginRight(c.paper.MarginRight).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromium print: %w", err)
	}
	return pdf, nil
}

// NewConverter picks the backend by name: "chromium" or "gotenberg".
func NewConverter(backend, gotenbergURL, chromePath string) (Converter, error) {
	switch backend {
	case "chromium":
		return NewChromium(chromePath), nil
	case "gotenberg", "":
		return NewClient(gotenbergURL), nil
	default:
		return nil, fmt.Errorf("report: unknown pdf backend %q", backend)
	}
}
