package animate

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

// The year label is drawn in white with its top-left corner at
// (width-85, height-55).
const (
	labelSize    = 32
	labelOffsetX = 85
	labelOffsetY = 55
)

// LoadFace loads the TrueType font at path, falling back to the embedded Go
// Bold font when path is empty or unreadable.
func LoadFace(path string, size float64) (font.Face, error) {
	if path != "" {
		if face, err := gg.LoadFontFace(path, size); err == nil {
			return face, nil
		}
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// Label returns a size-sized copy of img with text drawn near its lower
// right corner. img is not modified.
func Label(img image.Image, size image.Point, text string, face font.Face) image.Image {
	dc := gg.NewContext(size.X, size.Y)
	b := img.Bounds()
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	dc.SetFontFace(face)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, float64(size.X-labelOffsetX), float64(size.Y-labelOffsetY), 0, 1)
	return dc.Image()
}
