package escpos

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chaiyopos/print-engine/pkg/receipt"
)

// Column counts for the two supported paper widths
const (
	ColumnsNarrow = 32 // 58mm paper
	ColumnsWide   = 48 // 80mm paper
)

const footerFeedLines = 4

// Options carries the per-store decoration applied to every receipt and
// the column width derived from the paper setting.
type Options struct {
	Width        int // character columns, 32 or 48
	StoreName    string
	StoreAddress string
	StorePhone   string
	FooterText   string
	Barcode      bool // print the receipt number as code128
}

// FormatReceipt renders a receipt payload into a complete ESC/POS command
// stream: header, receipt info, items, totals, optional loyalty block,
// footer, feed and cut. The layout is pure column arithmetic, no I/O.
func FormatReceipt(r *receipt.Receipt, opts Options) ([]byte, error) {
	w := opts.Width
	if w != ColumnsNarrow && w != ColumnsWide {
		w = ColumnsNarrow
	}
	sep := strings.Repeat("=", w)

	e := NewEncoder()
	e.Initialize()

	writeHeader(e, opts)
	e.TextLine(sep)

	e.TextLine("เลขที่ " + r.Number)
	if r.Date != "" {
		line := r.Date
		if r.Time != "" {
			line += " " + r.Time
		}
		e.TextLine(line)
	}
	if r.StaffName != "" {
		e.TextLine("พนักงาน " + r.StaffName)
	}
	e.TextLine(sep)

	for _, item := range r.Items {
		for _, line := range itemLines(item, w) {
			e.TextLine(line)
		}
	}
	e.TextLine(sep)

	writeTotals(e, r, w)

	if hasLoyaltyBlock(r) {
		for _, line := range loyaltyLines(r, w) {
			e.TextLine(line)
		}
	}

	e.TextLine(sep)
	e.SetAlignment(AlignCenter)
	if opts.FooterText != "" {
		e.TextLine(opts.FooterText)
	}
	e.SetAlignment(AlignLeft)

	if r.QRContent != "" {
		if err := e.QRCode(r.QRContent, w); err != nil {
			return nil, err
		}
	}
	if opts.Barcode && r.Number != "" {
		if err := e.Barcode(r.Number, w); err != nil {
			return nil, err
		}
	}

	e.Feed(footerFeedLines)
	e.Cut()
	return e.Bytes(), nil
}

// TestPage renders the fixed diagnostic page used by testPrint.
func TestPage(opts Options) []byte {
	w := opts.Width
	if w != ColumnsNarrow && w != ColumnsWide {
		w = ColumnsNarrow
	}

	e := NewEncoder()
	e.Initialize()
	e.SetAlignment(AlignCenter)
	e.SetBold(true)
	e.TextLine("ทดสอบการพิมพ์")
	e.SetBold(false)
	if opts.StoreName != "" {
		e.TextLine(opts.StoreName)
	}
	e.SetAlignment(AlignLeft)
	e.TextLine(strings.Repeat("=", w))
	e.TextLine(fmt.Sprintf("ความกว้าง %d คอลัมน์", w))
	e.TextLine("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	e.TextLine("0123456789 ฿100.00")
	e.TextLine("กขคงจฉชซฌญฎฏฐฑฒณดตถทธนบปผฝ")
	e.TextLine(strings.Repeat("-", w))
	e.Feed(footerFeedLines)
	e.Cut()
	return e.Bytes()
}

func writeHeader(e *Encoder, opts Options) {
	e.SetAlignment(AlignCenter)
	e.SetTextSize(2, 2)
	e.SetBold(true)
	e.TextLine(opts.StoreName)
	e.SetBold(false)
	e.SetTextSize(1, 1)
	if opts.StoreAddress != "" {
		e.TextLine(opts.StoreAddress)
	}
	if opts.StorePhone != "" {
		e.TextLine("โทร. " + opts.StorePhone)
	}
	e.SetAlignment(AlignLeft)
}

func writeTotals(e *Encoder, r *receipt.Receipt, width int) {
	for i, line := range totalsLines(r, width) {
		// The grand total is always the first line after the optional
		// discount, printed bold.
		bold := (i == 0 && r.Discount <= 0) || (i == 1 && r.Discount > 0)
		if bold {
			e.SetBold(true)
		}
		e.TextLine(line)
		if bold {
			e.SetBold(false)
		}
	}
}

// itemLines renders one item: name line (truncated to fit), a right-aligned
// quantity line, and an optional parenthesized note line.
func itemLines(item receipt.Item, width int) []string {
	lines := []string{truncateName(item.Name, width)}

	qty := fmt.Sprintf("x%d @ %s = %s",
		item.Qty, formatAmount(item.Price), formatAmount(item.Subtotal))
	lines = append(lines, rightAlign(qty, width))

	if item.Note != "" {
		lines = append(lines, "  ("+item.Note+")")
	}
	return lines
}

// totalsLines builds the totals block. The discount line appears only when
// a discount was applied; tendered/change lines only for cash payments.
func totalsLines(r *receipt.Receipt, width int) []string {
	var lines []string

	if r.Discount > 0 {
		lines = append(lines, formatLine("ส่วนลด", formatAmount(r.Discount), width))
	}
	lines = append(lines, formatLine("รวมทั้งสิ้น", formatAmount(r.Total), width))
	lines = append(lines, formatLine("ชำระโดย", paymentLabel(r.PaymentMethod), width))

	if r.PaymentMethod == receipt.PaymentCash {
		lines = append(lines, formatLine("รับเงิน", formatAmount(r.Received), width))
		lines = append(lines, formatLine("เงินทอน", formatAmount(r.Change), width))
	}
	return lines
}

func hasLoyaltyBlock(r *receipt.Receipt) bool {
	return r.CustomerName != "" || r.PointsEarned != 0 || r.PointsRedeemed != 0
}

func loyaltyLines(r *receipt.Receipt, width int) []string {
	var lines []string
	if r.CustomerName != "" {
		lines = append(lines, "ลูกค้า "+r.CustomerName)
	}
	if r.PointsEarned != 0 {
		lines = append(lines, formatLine("แต้มที่ได้รับ", "+"+strconv.Itoa(r.PointsEarned), width))
	}
	if r.PointsRedeemed != 0 {
		lines = append(lines, formatLine("แต้มที่ใช้", "-"+strconv.Itoa(r.PointsRedeemed), width))
	}
	if r.CustomerName != "" || r.PointsEarned != 0 || r.PointsRedeemed != 0 {
		lines = append(lines, formatLine("แต้มคงเหลือ", strconv.Itoa(r.PointsBalance), width))
	}
	return lines
}

// formatLine joins a label and a value with enough spaces to fill width
// columns. The gap never drops below one space: an oversized pair overflows
// the line instead of colliding.
func formatLine(label, value string, width int) string {
	gap := width - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

// truncateName cuts a name longer than width-2 columns down to width-4
// runes plus a ".." marker, yielding exactly width-2 visible characters.
func truncateName(name string, width int) string {
	if utf8.RuneCountInString(name) <= width-2 {
		return name
	}
	runes := []rune(name)
	return string(runes[:width-4]) + ".."
}

// rightAlign pads s with leading spaces to fill width columns, keeping at
// least the two-space indent of the item quantity line.
func rightAlign(s string, width int) string {
	pad := width - utf8.RuneCountInString(s)
	if pad < 2 {
		pad = 2
	}
	return strings.Repeat(" ", pad) + s
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func paymentLabel(method string) string {
	switch method {
	case receipt.PaymentCash:
		return "เงินสด"
	case receipt.PaymentTransfer:
		return "โอนเงิน"
	case receipt.PaymentCredit:
		return "บัตรเครดิต"
	default:
		return method
	}
}
