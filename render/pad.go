package render

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// pad surrounds a PNG with a uniform border of bg and re-encodes it as PNG.
func pad(png []byte, width int, bg color.Color) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, err
	}
	return encodePNG(padImage(src, width, bg))
}

func padImage(src image.Image, width int, bg color.Color) *image.NRGBA {
	if bg == nil {
		bg = color.White
	}
	b := src.Bounds()
	dst := imaging.New(b.Dx()+2*width, b.Dy()+2*width, bg)
	return imaging.Paste(dst, src, image.Pt(width, width))
}

func encodePNG(img image.Image) ([]byte, error) {
	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
