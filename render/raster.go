package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mediastore/models"
)

const (
	rasterScale     = 2 // basicfont is 7x13; doubled it reads like a 14pt editor font
	rasterInset     = 10
	rasterGutterGap = 2 // columns between line numbers and code
	rasterTabWidth  = 4
)

// RasterCodeRenderer draws highlighted tokens straight onto an image with a
// built-in bitmap font. It needs no browser.
type RasterCodeRenderer struct{}

func NewRasterCodeRenderer() *RasterCodeRenderer {
	return &RasterCodeRenderer{}
}

func (r *RasterCodeRenderer) Render(ctx context.Context, spec models.RenderSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "render code", Err: err}
	}
	lines, style, err := tokenLines(spec)
	if err != nil {
		return nil, &Error{Op: "render code", Err: err}
	}

	bg := backgroundColour(style)
	img := drawLines(lines, style, bg, spec.ShowLineNumbers)
	img = imaging.Resize(img, img.Bounds().Dx()*rasterScale, 0, imaging.NearestNeighbor)

	png, err := encodePNG(padImage(img, codePadding, bg))
	if err != nil {
		return nil, &Error{Op: "render code", Err: err}
	}
	return png, nil
}

// tokenLines lexes spec.Content and splits the tokens into lines without
// their trailing newlines.
func tokenLines(spec models.RenderSpec) ([][]chroma.Token, *chroma.Style, error) {
	lexer := resolveLexer(spec.Language, spec.Content)
	if lexer == nil {
		return nil, nil, errors.New("no lexer found for language " + spec.Language)
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, spec.Content)
	if err != nil {
		return nil, nil, err
	}
	lines := chroma.SplitTokensIntoLines(iterator.Tokens())
	for _, line := range lines {
		for j := range line {
			line[j].Value = strings.TrimRight(line[j].Value, "\r\n")
		}
	}
	if len(lines) == 0 {
		lines = [][]chroma.Token{{}}
	}
	return lines, resolveStyle(spec.Style), nil
}

func drawLines(lines [][]chroma.Token, style *chroma.Style, bg color.Color, lineNumbers bool) *image.NRGBA {
	face := basicfont.Face7x13

	gutter := 0
	if lineNumbers {
		gutter = len(fmt.Sprint(len(lines))) + rasterGutterGap
	}
	cols := 1
	for _, line := range lines {
		if n := lineWidth(line); n > cols {
			cols = n
		}
	}

	width := 2*rasterInset + (gutter+cols)*face.Advance
	height := 2*rasterInset + len(lines)*face.Height
	img := imaging.New(width, height, bg)

	text := entryColour(style.Get(chroma.Text), color.Black)
	numbers := entryColour(style.Get(chroma.LineNumbers), color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff})

	d := &font.Drawer{Dst: img, Face: face}
	for i, line := range lines {
		baseline := rasterInset + i*face.Height + face.Ascent
		if lineNumbers {
			d.Src = image.NewUniform(numbers)
			d.Dot = fixed.P(rasterInset, baseline)
			d.DrawString(fmt.Sprintf("%*d", gutter-rasterGutterGap, i+1))
		}
		col := gutter
		for _, tok := range line {
			value := expandTabs(tok.Value, col-gutter)
			d.Src = image.NewUniform(entryColour(style.Get(tok.Type), text))
			d.Dot = fixed.P(rasterInset+col*face.Advance, baseline)
			d.DrawString(value)
			col += utf8.RuneCountInString(value)
		}
	}
	return img
}

func lineWidth(line []chroma.Token) int {
	col := 0
	for _, tok := range line {
		col += utf8.RuneCountInString(expandTabs(tok.Value, col))
	}
	return col
}

// expandTabs replaces tabs with spaces up to the next tab stop, counting from
// column start.
func expandTabs(s string, start int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := start
	for _, r := range s {
		if r == '\t' {
			n := rasterTabWidth - col%rasterTabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

func entryColour(e chroma.StyleEntry, fallback color.Color) color.Color {
	if !e.Colour.IsSet() {
		return fallback
	}
	return color.NRGBA{R: e.Colour.Red(), G: e.Colour.Green(), B: e.Colour.Blue(), A: 0xff}
}
