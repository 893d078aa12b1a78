package render

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"image/color"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"mediastore/models"
)

const codePadding = 20

var codePage = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
{{.CSS}}
body { margin: 0; background: {{.Background}}; }
#capture { display: inline-block; padding: 20px; border-radius: 5px; font-family: "Courier New", Courier, monospace; font-size: 24px; }
#capture pre { margin: 0; font-family: inherit; }
</style>
</head>
<body>
<div id="capture" class="chroma-capture">{{.Code}}</div>
</body>
</html>`))

// CodeRenderer highlights source code with chroma and rasterizes the
// highlighted HTML in a headless browser.
type CodeRenderer struct {
	Browser Browser
}

func NewCodeRenderer(b Browser) *CodeRenderer {
	return &CodeRenderer{Browser: b}
}

func (r *CodeRenderer) Render(ctx context.Context, spec models.RenderSpec) ([]byte, error) {
	doc, bg, err := HighlightHTML(spec)
	if err != nil {
		return nil, &Error{Op: "render code", Err: err}
	}

	shot, err := r.Browser.capture(ctx, doc, nil)
	if err != nil {
		return nil, &Error{Op: "render code", Err: err}
	}

	png, err := pad(shot, codePadding, bg)
	if err != nil {
		return nil, &Error{Op: "render code", Err: err}
	}
	return png, nil
}

// Code rendering strategies. Auto uses the browser when a Chrome binary is
// found and the raster renderer otherwise.
const (
	CodeAuto    = "auto"
	CodeBrowser = "browser"
	CodeRaster  = "raster"
)

// NewCodeRendererFor picks the code rendering strategy configured for the
// deployment.
func NewCodeRendererFor(strategy string, b Browser) (Renderer, error) {
	switch strategy {
	case "", CodeAuto:
		if b.ChromeAvailable() {
			return NewCodeRenderer(b), nil
		}
		return NewRasterCodeRenderer(), nil
	case CodeBrowser:
		return NewCodeRenderer(b), nil
	case CodeRaster:
		return NewRasterCodeRenderer(), nil
	default:
		return nil, errors.New("unknown code renderer " + strategy)
	}
}

// HighlightHTML returns a standalone HTML page with the highlighted code inside
// #capture, plus the style's background colour.
func HighlightHTML(spec models.RenderSpec) (string, color.Color, error) {
	lexer := resolveLexer(spec.Language, spec.Content)
	if lexer == nil {
		return "", nil, errors.New("no lexer found for language " + spec.Language)
	}
	lexer = chroma.Coalesce(lexer)
	style := resolveStyle(spec.Style)

	formatter := html.New(
		html.WithClasses(true),
		html.WithLineNumbers(spec.ShowLineNumbers),
		html.TabWidth(4),
	)

	iterator, err := lexer.Tokenise(nil, spec.Content)
	if err != nil {
		return "", nil, err
	}
	var code bytes.Buffer
	if err := formatter.Format(&code, style, iterator); err != nil {
		return "", nil, err
	}
	var css bytes.Buffer
	if err := formatter.WriteCSS(&css, style); err != nil {
		return "", nil, err
	}

	bg := backgroundColour(style)
	var page bytes.Buffer
	err = codePage.Execute(&page, struct {
		CSS        template.CSS
		Background template.CSS
		Code       template.HTML
	}{
		CSS:        template.CSS(css.String()),
		Background: template.CSS(hexColour(bg)),
		Code:       template.HTML(code.String()),
	})
	if err != nil {
		return "", nil, err
	}
	return page.String(), bg, nil
}

// resolveLexer looks the language up by name or alias and otherwise guesses
// from the content. It returns nil when neither works.
func resolveLexer(language, code string) chroma.Lexer {
	if name := strings.TrimSpace(language); name != "" {
		if l := lexers.Get(name); l != nil {
			return l
		}
	}
	return lexers.Analyse(code)
}

// resolveStyle maps Pygments style names onto chroma styles; "default" is
// Pygments' own default, which chroma calls "pygments".
func resolveStyle(name string) *chroma.Style {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "default" {
		name = "pygments"
	}
	return styles.Get(name)
}

func backgroundColour(style *chroma.Style) color.Color {
	bg := style.Get(chroma.Background).Background
	if !bg.IsSet() {
		return color.White
	}
	return color.NRGBA{R: bg.Red(), G: bg.Green(), B: bg.Blue(), A: 0xff}
}

func hexColour(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	const digits = "0123456789abcdef"
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{n.R, n.G, n.B} {
		out[1+i*2] = digits[v>>4]
		out[2+i*2] = digits[v&0x0f]
	}
	return string(out)
}
