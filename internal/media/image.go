// Package media holds the image and audio post-processing primitives used
// by the cover post-processor and the narration stage.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/tellatale/engine/internal/fault"
)

const (
	jpegQuality       = 85
	watermarkFontSize = 40
	watermarkMargin   = 24
)

// RecompressJPEG decodes any supported image format and re-encodes it as
// JPEG at the standard cover quality.
func RecompressJPEG(data []byte) ([]byte, error) {
	const op = "media.recompress_jpeg"

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fault.New(fault.ContentFault, op, fmt.Errorf("decode image: %w", err))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fault.New(fault.Unknown, op, fmt.Errorf("encode jpeg: %w", err))
	}
	return buf.Bytes(), nil
}

// Watermark overlays text in the lower-right corner at half opacity and
// returns the result as JPEG.
func Watermark(data []byte, text string) ([]byte, error) {
	const op = "media.watermark"

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fault.New(fault.ContentFault, op, fmt.Errorf("decode image: %w", err))
	}

	face, err := watermarkFace()
	if err != nil {
		return nil, fault.New(fault.Unknown, op, err)
	}

	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 128}),
		Face: face,
	}
	width := drawer.MeasureString(text)
	bounds := canvas.Bounds()
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(bounds.Max.X-watermarkMargin) - width,
		Y: fixed.I(bounds.Max.Y - watermarkMargin),
	}
	drawer.DrawString(text)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fault.New(fault.Unknown, op, fmt.Errorf("encode jpeg: %w", err))
	}
	return buf.Bytes(), nil
}

func watermarkFace() (font.Face, error) {
	ft, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse watermark font: %w", err)
	}
	return opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    watermarkFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
