package escpos

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"
)

// Font A is 12 dots wide, so a 32-column printer has a 384-dot head and a
// 48-column one 576 dots.
const dotsPerColumn = 12

// Image prints img as a 1-bit raster using GS v 0. Pixels darker than 50%
// grey become black dots.
func (e *Encoder) Image(img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	bytesPerLine := (width + 7) / 8

	bitmap := make([]byte, bytesPerLine*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			if (r+g+b)/3 < 32768 {
				bitmap[y*bytesPerLine+x/8] |= 1 << (7 - x%8)
			}
		}
	}

	e.buf.Write([]byte{GS, 'v', '0', 0})
	e.buf.WriteByte(byte(bytesPerLine & 0xFF))
	e.buf.WriteByte(byte(bytesPerLine >> 8))
	e.buf.WriteByte(byte(height & 0xFF))
	e.buf.WriteByte(byte(height >> 8))
	e.buf.Write(bitmap)
}

// QRCode renders content as a centered QR block sized to the paper.
// columns is the printer's character column count.
func (e *Encoder) QRCode(content string, columns int) error {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to build QR code: %w", err)
	}

	size := columns * dotsPerColumn / 2
	if size > 240 {
		size = 240
	}

	e.SetAlignment(AlignCenter)
	e.Image(qr.Image(size))
	e.SetAlignment(AlignLeft)
	return nil
}

// Barcode renders content as a centered code128 strip (receipt numbers fit
// comfortably in code128's character set).
func (e *Encoder) Barcode(content string, columns int) error {
	bc, err := code128.Encode(content)
	if err != nil {
		return fmt.Errorf("failed to build barcode: %w", err)
	}

	targetWidth := columns*dotsPerColumn - 2*dotsPerColumn
	scaled, err := barcode.Scale(bc, targetWidth, 60)
	if err != nil {
		return fmt.Errorf("failed to scale barcode: %w", err)
	}

	e.SetAlignment(AlignCenter)
	e.Image(scaled)
	e.SetAlignment(AlignLeft)
	return nil
}
