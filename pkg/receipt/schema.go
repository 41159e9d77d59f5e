// Package receipt defines the payload schema a point-of-sale hands to a
// printer transport. A Receipt is an immutable per-sale snapshot; the
// engine formats it but never recomputes or validates its arithmetic.
package receipt

// Payment method tags carried in Receipt.PaymentMethod.
const (
	PaymentCash     = "cash"
	PaymentTransfer = "transfer"
	PaymentCredit   = "credit"
)

// Receipt is the root structure of a print payload
type Receipt struct {
	Number string `json:"number"`
	Date   string `json:"date,omitempty"`
	Time   string `json:"time,omitempty"`

	Items []Item `json:"items"`

	Discount float64 `json:"discount,omitempty"`
	Total    float64 `json:"total"`

	PaymentMethod string  `json:"payment_method"`
	Received      float64 `json:"received,omitempty"` // cash only
	Change        float64 `json:"change,omitempty"`   // cash only

	// Loyalty block, printed only when a member was attached to the sale
	CustomerName   string `json:"customer_name,omitempty"`
	PointsEarned   int    `json:"points_earned,omitempty"`
	PointsRedeemed int    `json:"points_redeemed,omitempty"`
	PointsBalance  int    `json:"points_balance,omitempty"`

	StaffName string `json:"staff_name,omitempty"`

	// QRContent holds an optional payment/reference payload (for example a
	// PromptPay string) rendered as a QR block above the footer.
	QRContent string `json:"qr_content,omitempty"`
}

// Item is one sold line on the receipt
type Item struct {
	Name     string  `json:"name"`
	Qty      int     `json:"qty"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
	Note     string  `json:"note,omitempty"`
}
