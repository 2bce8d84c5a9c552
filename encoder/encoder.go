// Package encoder adapts third-party QR libraries to studio.Encoder.
package encoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/skip2/go-qrcode"

	"github.com/openclaw/qrgen/studio"
)

const (
	NameImage   = "image"
	NameSurface = "surface"
)

// New returns the encoder registered under name.
func New(name string) (studio.Encoder, error) {
	switch name {
	case NameImage, "":
		return ImageEncoder{}, nil
	case NameSurface:
		return SurfaceEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
}

// ImageEncoder renders a PNG with go-qrcode and appends it as an image
// element with a data URL source.
type ImageEncoder struct{}

func (ImageEncoder) Encode(c studio.Container, opts studio.Options) error {
	q, err := qrcode.New(opts.Content, skipLevel(opts.Level))
	if err != nil {
		return fmt.Errorf("qrcode new: %w", err)
	}
	q.ForegroundColor = opts.Foreground
	q.BackgroundColor = opts.Background

	// go-qrcode grows the image rather than fail when the symbol does not
	// fit; keep the requested size a hard limit like the surface encoder.
	img := q.Image(opts.Width)
	if got := img.Bounds().Dx(); got > opts.Width {
		return fmt.Errorf("qrcode image: symbol needs %dpx, %dpx requested", got, opts.Width)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("qrcode png: %w", err)
	}
	c.Append(&studio.Image{
		Src: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Alt: "QR Code",
	})
	return nil
}

func skipLevel(l studio.Level) qrcode.RecoveryLevel {
	switch l {
	case studio.LevelLow:
		return qrcode.Low
	case studio.LevelMedium:
		return qrcode.Medium
	case studio.LevelQuartile:
		return qrcode.High
	default:
		return qrcode.Highest
	}
}

// SurfaceEncoder draws the symbol with boombuler/barcode onto a pixel
// surface.
type SurfaceEncoder struct{}

func (SurfaceEncoder) Encode(c studio.Container, opts studio.Options) error {
	code, err := qr.Encode(opts.Content, barcodeLevel(opts.Level), qr.Auto)
	if err != nil {
		return fmt.Errorf("barcode encode: %w", err)
	}
	scaled, err := barcode.Scale(code, opts.Width, opts.Height)
	if err != nil {
		return fmt.Errorf("barcode scale: %w", err)
	}
	c.Append(&studio.Surface{Pixels: paint(scaled, opts.Foreground, opts.Background)})
	return nil
}

// paint copies a black-on-white symbol onto a two-colour palette.
func paint(src image.Image, fg, bg color.Color) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(b, color.Palette{bg, fg})
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(src.At(x, y)).(color.Gray).Y < 128 {
				dst.SetColorIndex(x, y, 1)
			}
		}
	}
	return dst
}

func barcodeLevel(l studio.Level) qr.ErrorCorrectionLevel {
	switch l {
	case studio.LevelLow:
		return qr.L
	case studio.LevelMedium:
		return qr.M
	case studio.LevelQuartile:
		return qr.Q
	default:
		return qr.H
	}
}
