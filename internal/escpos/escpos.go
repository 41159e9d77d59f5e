// Package escpos builds the ESC/POS command streams sent to thermal
// printers. The Encoder emits raw control codes into a buffer; receipt.go
// holds the pure layout logic that decides what gets emitted.
package escpos

import (
	"bytes"

	"github.com/chaiyopos/print-engine/internal/tis620"
)

// ESC/POS control bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// Alignment values for SetAlignment
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Encoder accumulates an ESC/POS command stream. The stream is append-only;
// once Bytes is taken it is handed to a transport verbatim.
type Encoder struct {
	buf *bytes.Buffer
}

// NewEncoder creates an empty command stream
func NewEncoder() *Encoder {
	return &Encoder{buf: new(bytes.Buffer)}
}

// Initialize resets the printer to its power-on state (ESC @)
func (e *Encoder) Initialize() {
	e.buf.Write([]byte{ESC, '@'})
}

// SetAlignment sets text alignment (ESC a)
func (e *Encoder) SetAlignment(align string) {
	var n byte
	switch align {
	case AlignCenter:
		n = 1
	case AlignRight:
		n = 2
	default:
		n = 0
	}
	e.buf.Write([]byte{ESC, 'a', n})
}

// SetBold enables or disables emphasized printing (ESC E)
func (e *Encoder) SetBold(enabled bool) {
	var n byte
	if enabled {
		n = 1
	}
	e.buf.Write([]byte{ESC, 'E', n})
}

// SetTextSize sets character width and height multipliers 1..8 (GS !)
func (e *Encoder) SetTextSize(width, height int) {
	if width < 1 {
		width = 1
	}
	if width > 8 {
		width = 8
	}
	if height < 1 {
		height = 1
	}
	if height > 8 {
		height = 8
	}
	e.buf.Write([]byte{GS, '!', byte((width-1)<<4 | (height - 1))})
}

// Text transcodes s to the printer character set and appends it
func (e *Encoder) Text(s string) {
	e.buf.Write(tis620.Encode(s))
}

// TextLine appends a transcoded line followed by a line feed
func (e *Encoder) TextLine(s string) {
	e.Text(s)
	e.LineFeed()
}

// LineFeed appends a single line feed
func (e *Encoder) LineFeed() {
	e.buf.WriteByte(LF)
}

// Feed appends n blank lines
func (e *Encoder) Feed(n int) {
	for i := 0; i < n; i++ {
		e.LineFeed()
	}
}

// Cut appends a full paper cut (GS V)
func (e *Encoder) Cut() {
	e.buf.Write([]byte{GS, 'V', 0})
}

// Raw appends bytes without transcoding
func (e *Encoder) Raw(p []byte) {
	e.buf.Write(p)
}

// Bytes returns the accumulated command stream
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Reset clears the buffer
func (e *Encoder) Reset() {
	e.buf.Reset()
}
