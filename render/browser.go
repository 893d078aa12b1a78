package render

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	captureSelector = "#capture"

	defaultBrowserTimeout = 30 * time.Second
	defaultWaitTimeout    = 10 * time.Second
	defaultViewportWidth  = 1200
	defaultViewportHeight = 800
)

// Browser drives a headless Chrome. Every capture starts its own browser
// process and tears it down before returning.
type Browser struct {
	ChromePath  string
	Timeout     time.Duration // whole call, including browser startup
	WaitTimeout time.Duration // how long the rendered element may take to appear
	Width       int
	Height      int
}

// ChromeAvailable reports whether a Chrome/Chromium binary can be found.
func (b Browser) ChromeAvailable() bool {
	if strings.TrimSpace(b.ChromePath) != "" {
		_, err := exec.LookPath(b.ChromePath)
		return err == nil
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func (b Browser) newContext(ctx context.Context) (context.Context, func()) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
	)
	if path := strings.TrimSpace(b.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	closeFn := func() {
		chromeCancel()
		allocCancel()
	}
	return chromeCtx, closeFn
}

// capture loads htmlDoc, waits for #capture to become visible, runs ready (if
// any) and screenshots the #capture node.
func (b Browser) capture(ctx context.Context, htmlDoc string, ready func(ctx context.Context, timeout time.Duration) error) ([]byte, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}
	wait := b.WaitTimeout
	if wait <= 0 {
		wait = defaultWaitTimeout
	}
	width, height := b.Width, b.Height
	if width <= 0 {
		width = defaultViewportWidth
	}
	if height <= 0 {
		height = defaultViewportHeight
	}

	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chromeCtx, closeFn := b.newContext(renderCtx)
	defer closeFn()

	err := chromedp.Run(chromeCtx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlDoc).Do(ctx)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(chromeCtx, wait)
	err = chromedp.Run(waitCtx, chromedp.WaitVisible(captureSelector, chromedp.ByQuery))
	waitCancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("rendered element %s did not appear within %s", captureSelector, wait)
		}
		return nil, fmt.Errorf("wait for %s: %w", captureSelector, err)
	}

	if ready != nil {
		if err := ready(chromeCtx, wait); err != nil {
			return nil, err
		}
	}

	var png []byte
	if err := chromedp.Run(chromeCtx, chromedp.Screenshot(captureSelector, &png, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", captureSelector, err)
	}
	if len(png) == 0 {
		return nil, errors.New("screenshot is empty")
	}
	return png, nil
}
