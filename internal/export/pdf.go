package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfTimeout = 30 * time.Second

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// pageLayout is the printed page in inches. The canvas is wider than it is
// tall so reports print landscape.
type pageLayout struct {
	Width, Height, Margin float64
	Landscape             bool
}

var letterLandscape = pageLayout{Width: 8.5, Height: 11, Margin: 0.4, Landscape: true}

func htmlDataURL(html string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}

func findChrome() (string, bool) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

func (l pageLayout) print() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(l.Landscape).
		WithPaperWidth(l.Width).
		WithPaperHeight(l.Height).
		WithMarginTop(l.Margin).
		WithMarginBottom(l.Margin).
		WithMarginLeft(l.Margin).
		WithMarginRight(l.Margin)
}

// renderPDF prints html with headless Chrome.
func renderPDF(ctx context.Context, html string) ([]byte, error) {
	chrome, ok := findChrome()
	if !ok {
		return nil, fmt.Errorf("%w: no chrome or chromium binary on PATH", ErrPDFDependencyMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chrome),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var data []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(htmlDataURL(html)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, _, err = letterLandscape.print().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("printing pdf: %w", err)
	}
	return data, nil
}
