package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediastore/models"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	maxRemoteImageBytes  = 20 << 20
)

// RemoteDiagramRenderer delegates Mermaid rendering to a mermaid.ink compatible
// HTTP endpoint.
type RemoteDiagramRenderer struct {
	baseURL string
	client  *http.Client
}

func NewRemoteDiagramRenderer(baseURL string, timeout time.Duration) *RemoteDiagramRenderer {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteDiagramRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// RemoteURL returns the GET URL for markup rendered with theme.
func (r *RemoteDiagramRenderer) RemoteURL(source, theme string) string {
	encoded := base64.URLEncoding.EncodeToString([]byte(source))
	q := url.Values{}
	q.Set("type", "png")
	if theme = strings.TrimSpace(theme); theme != "" {
		q.Set("theme", theme)
	}
	return fmt.Sprintf("%s/img/%s?%s", r.baseURL, encoded, q.Encode())
}

func (r *RemoteDiagramRenderer) Render(ctx context.Context, spec models.RenderSpec) ([]byte, error) {
	source, err := normalizeMermaidSource(spec.Content)
	if err != nil {
		return nil, &Error{Op: "render diagram", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.RemoteURL(source, spec.Style), nil)
	if err != nil {
		return nil, &Error{Op: "render diagram", Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "render diagram", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes+1))
	if err != nil {
		return nil, &Error{Op: "render diagram", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: "render diagram", Status: resp.StatusCode, Detail: truncate(string(body), 300)}
	}
	if len(body) > maxRemoteImageBytes {
		return nil, &Error{Op: "render diagram", Detail: fmt.Sprintf("image exceeds %d bytes", maxRemoteImageBytes)}
	}
	if len(body) == 0 {
		return nil, &Error{Op: "render diagram", Status: resp.StatusCode, Detail: "empty image"}
	}
	return body, nil
}

// BrowserDiagramRenderer renders Mermaid in a headless browser.
type BrowserDiagramRenderer struct {
	Browser Browser
}

func NewBrowserDiagramRenderer(b Browser) *BrowserDiagramRenderer {
	return &BrowserDiagramRenderer{Browser: b}
}

func (r *BrowserDiagramRenderer) Render(ctx context.Context, spec models.RenderSpec) ([]byte, error) {
	source, err := normalizeMermaidSource(spec.Content)
	if err != nil {
		return nil, &Error{Op: "render diagram", Err: err}
	}
	doc, err := buildMermaidHTML(source, spec.Style)
	if err != nil {
		return nil, &Error{Op: "render diagram", Err: err}
	}
	png, err := r.Browser.capture(ctx, doc, waitForDiagramStatus)
	if err != nil {
		return nil, &Error{Op: "render diagram", Err: err}
	}
	return png, nil
}

// NewDiagramRenderer picks the strategy configured for the deployment.
func NewDiagramRenderer(strategy, mermaidInkURL string, remoteTimeout time.Duration, b Browser) (Renderer, error) {
	switch strategy {
	case "", "remote":
		return NewRemoteDiagramRenderer(mermaidInkURL, remoteTimeout), nil
	case "browser":
		return NewBrowserDiagramRenderer(b), nil
	default:
		return nil, errors.New("unknown diagram renderer " + strategy)
	}
}
