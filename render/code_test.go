package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastore/models"
)

func TestResolveLexer(t *testing.T) {
	l := resolveLexer("python", "print(1)")
	require.NotNil(t, l)
	assert.Equal(t, "Python", l.Config().Name)

	l = resolveLexer("py", "print(1)")
	require.NotNil(t, l)
	assert.Equal(t, "Python", l.Config().Name)

	// Unknown names fall back to content detection.
	assert.NotNil(t, resolveLexer("no-such-language", "#!/bin/bash\necho hello\n"))
}

func TestResolveStyle(t *testing.T) {
	assert.Equal(t, "pygments", resolveStyle("default").Name)
	assert.Equal(t, "pygments", resolveStyle("").Name)
	assert.Equal(t, "monokai", resolveStyle("Monokai").Name)
}

func TestHighlightHTML(t *testing.T) {
	doc, bg, err := HighlightHTML(models.RenderSpec{
		Content:         "def f(x):\n    return x <b> 1\n",
		Language:        "python",
		Style:           "default",
		ShowLineNumbers: true,
	})
	require.NoError(t, err)
	require.NotNil(t, bg)

	assert.Contains(t, doc, `id="capture"`)
	assert.Contains(t, doc, "font-size: 24px")
	assert.Contains(t, doc, `class="chroma"`)
	// the lexer splits <b> into operator and name tokens; it must arrive escaped
	assert.Contains(t, doc, "&lt;</span>")
	assert.Contains(t, doc, "&gt;</span>")
	assert.NotContains(t, doc, "<b>")
	assert.Contains(t, doc, ">2<", "expected a line number for the second line")
}

func TestHighlightHTML_UnknownLanguage(t *testing.T) {
	_, _, err := HighlightHTML(models.RenderSpec{Content: "zzz", Language: "nonexistent-lang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lexer found")
}

func TestHighlightHTML_WithoutLineNumbers(t *testing.T) {
	doc, _, err := HighlightHTML(models.RenderSpec{Content: "a\nb\nc\n", Language: "text"})
	require.NoError(t, err)
	assert.NotContains(t, doc, `class="ln"`)
}

func TestHexColour(t *testing.T) {
	assert.Equal(t, "#ffffff", hexColour(color.White))
	assert.Equal(t, "#0a0b0c", hexColour(color.NRGBA{R: 10, G: 11, B: 12, A: 255}))
}

func TestPad(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 5))
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, src))

	out, err := pad(in.Bytes(), 20, color.NRGBA{R: 0xf8, G: 0xf8, B: 0xf8, A: 0xff})
	require.NoError(t, err)
	require.True(t, IsPNG(out))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 45, img.Bounds().Dy())

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xf8f8), r)
	assert.Equal(t, uint32(0xf8f8), g)
	assert.Equal(t, uint32(0xf8f8), b)
}

func TestPad_NotAnImage(t *testing.T) {
	_, err := pad([]byte("not an image"), 20, nil)
	assert.Error(t, err)
}

func TestCodeRenderer_RendersPNG(t *testing.T) {
	b := Browser{}
	if testing.Short() || !b.ChromeAvailable() {
		t.Skip("headless chrome not available")
	}
	out, err := NewCodeRenderer(b).Render(context.Background(), models.RenderSpec{
		Content:         "print(1)",
		Language:        "python",
		Style:           "default",
		ShowLineNumbers: true,
	})
	require.NoError(t, err)
	assert.True(t, IsPNG(out))
}

func TestIsPNGAndErrorText(t *testing.T) {
	assert.False(t, IsPNG([]byte("GIF89a")))
	assert.False(t, IsPNG(nil))

	err := &Error{Op: "render diagram", Status: 502, Detail: "bad gateway"}
	assert.True(t, strings.Contains(err.Error(), "upstream status 502"))
}

func TestRasterCodeRenderer_RendersPNG(t *testing.T) {
	out, err := NewRasterCodeRenderer().Render(context.Background(), models.RenderSpec{
		Content:         "print(1)",
		Language:        "python",
		Style:           "default",
		ShowLineNumbers: true,
	})
	require.NoError(t, err)
	require.True(t, IsPNG(out))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	// one line, 3 gutter columns + 8 code columns of 7x13 glyphs, doubled, then padded
	assert.Equal(t, (2*rasterInset+11*7)*rasterScale+2*codePadding, img.Bounds().Dx())
	assert.Equal(t, (2*rasterInset+13)*rasterScale+2*codePadding, img.Bounds().Dy())

	bg := color.NRGBAModel.Convert(backgroundColour(resolveStyle("default"))).(color.NRGBA)
	assert.Equal(t, bg, color.NRGBAModel.Convert(img.At(0, 0)))

	inked := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.NRGBAModel.Convert(img.At(x, y)) != bg {
				inked++
			}
		}
	}
	assert.Greater(t, inked, 0, "expected glyphs on the canvas")
}

func TestRasterCodeRenderer_LineNumbersWidenImage(t *testing.T) {
	spec := models.RenderSpec{Content: "a = 1\nb = 2\n", Language: "python"}
	plain, err := NewRasterCodeRenderer().Render(context.Background(), spec)
	require.NoError(t, err)

	spec.ShowLineNumbers = true
	numbered, err := NewRasterCodeRenderer().Render(context.Background(), spec)
	require.NoError(t, err)

	p, err := png.Decode(bytes.NewReader(plain))
	require.NoError(t, err)
	n, err := png.Decode(bytes.NewReader(numbered))
	require.NoError(t, err)
	assert.Greater(t, n.Bounds().Dx(), p.Bounds().Dx())
	assert.Equal(t, n.Bounds().Dy(), p.Bounds().Dy())
}

func TestRasterCodeRenderer_UnknownLanguage(t *testing.T) {
	_, err := NewRasterCodeRenderer().Render(context.Background(), models.RenderSpec{
		Content:  "zzz",
		Language: "nonexistent-lang",
	})
	require.Error(t, err)

	var rErr *Error
	require.True(t, errors.As(err, &rErr))
	assert.Equal(t, "render code", rErr.Op)
}

func TestExpandTabs(t *testing.T) {
	assert.Equal(t, "    x", expandTabs("\tx", 0))
	assert.Equal(t, "ab  c", expandTabs("ab\tc", 0))
	assert.Equal(t, "  c", expandTabs("\tc", 2))
	assert.Equal(t, "plain", expandTabs("plain", 3))
}

func TestNewCodeRendererFor(t *testing.T) {
	noChrome := Browser{ChromePath: "/nonexistent/chrome"}

	r, err := NewCodeRendererFor(CodeAuto, noChrome)
	require.NoError(t, err)
	assert.IsType(t, &RasterCodeRenderer{}, r)

	r, err = NewCodeRendererFor(CodeBrowser, noChrome)
	require.NoError(t, err)
	assert.IsType(t, &CodeRenderer{}, r)

	r, err = NewCodeRendererFor(CodeRaster, Browser{})
	require.NoError(t, err)
	assert.IsType(t, &RasterCodeRenderer{}, r)

	_, err = NewCodeRendererFor("pygments", Browser{})
	assert.Error(t, err)
}
