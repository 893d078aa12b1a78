package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	mermaidVersion   = "10.9.0"
	mermaidScriptURL = "https://cdn.jsdelivr.net/npm/mermaid@" + mermaidVersion + "/dist/mermaid.min.js"
	diagramPadding   = 32
)

var mermaidThemes = map[string]bool{"default": true, "dark": true, "forest": true, "neutral": true, "base": true}

var mermaidPage = template.Must(template.New("mermaid").Parse(`<!DOCTYPE html>
<html data-diagram-status="loading">
<head>
<meta charset="utf-8">
<style>
body { margin: 0; background: {{.Background}}; }
#capture { display: inline-block; padding: {{.Padding}}px; background: {{.Background}}; min-width: 8px; min-height: 8px; }
</style>
<script src="{{.ScriptURL}}"></script>
</head>
<body>
<div id="capture"><div id="diagram"></div></div>
<pre id="source" style="display:none">{{.Source}}</pre>
<script>
(async function () {
  const root = document.documentElement;
  try {
    if (typeof mermaid === 'undefined') {
      throw new Error('mermaid script failed to load');
    }
    mermaid.initialize({ startOnLoad: false, theme: {{.Theme}}, securityLevel: 'strict' });
    const src = document.getElementById('source').textContent;
    await mermaid.parse(src);
    const out = await mermaid.render('rendered', src);
    document.getElementById('diagram').innerHTML = out.svg;
    root.dataset.diagramStatus = 'ready';
  } catch (e) {
    root.dataset.diagramError = String((e && e.message) || e);
    root.dataset.diagramStatus = 'error';
  }
})();
</script>
</body>
</html>`))

// normalizeMermaidSource trims the markup and strips a surrounding ```mermaid fence.
func normalizeMermaidSource(raw string) (string, error) {
	source := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	source = strings.TrimSpace(stripMermaidCodeFence(source))
	if source == "" {
		return "", errors.New("diagram source is empty")
	}
	return source, nil
}

func stripMermaidCodeFence(source string) string {
	lines := strings.Split(source, "\n")
	if len(lines) < 2 {
		return source
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "```") {
		return source
	}
	if lang := strings.TrimSpace(strings.TrimPrefix(first, "```")); lang != "" && !strings.EqualFold(lang, "mermaid") {
		return source
	}
	end := len(lines)
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		end = len(lines) - 1
	}
	return strings.Join(lines[1:end], "\n")
}

func normalizeTheme(theme string) string {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if mermaidThemes[theme] {
		return theme
	}
	return "default"
}

func buildMermaidHTML(source, theme string) (string, error) {
	theme = normalizeTheme(theme)
	background := "#ffffff"
	if theme == "dark" {
		background = "#1e1e1e"
	}
	var buf bytes.Buffer
	err := mermaidPage.Execute(&buf, struct {
		Source     string
		Theme      string
		ScriptURL  string
		Padding    int
		Background template.CSS
	}{
		Source:     source,
		Theme:      theme,
		ScriptURL:  mermaidScriptURL,
		Padding:    diagramPadding,
		Background: template.CSS(background),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// waitForDiagramStatus polls the status the page script records on <html>.
// Script exceptions are retried until the deadline; any other evaluate error
// means the browser is gone and ends the wait.
func waitForDiagramStatus(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		var status, diagErr string
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`document.documentElement.dataset.diagramStatus || ""`, &status),
			chromedp.Evaluate(`document.documentElement.dataset.diagramError || ""`, &diagErr),
		)
		if err != nil {
			if !transientEvalError(err) {
				return fmt.Errorf("read diagram status: %w", err)
			}
			lastErr = err
		}
		switch strings.TrimSpace(status) {
		case "ready":
			return nil
		case "error":
			if diagErr == "" {
				diagErr = "unknown error"
			}
			return fmt.Errorf("diagram render failed: %s", truncate(diagErr, 200))
		}

		if time.Now().After(deadline) {
			if lastErr != nil {
				return fmt.Errorf("diagram render timed out (status=%q): %w", status, lastErr)
			}
			return fmt.Errorf("diagram render timed out (status=%q)", status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// transientEvalError reports whether err was thrown by page script, which can
// happen while the document is still loading.
func transientEvalError(err error) bool {
	var exc *runtime.ExceptionDetails
	return errors.As(err, &exc)
}
