package receipt

import "fmt"

// Validate checks a Receipt for structural problems. It deliberately does
// not verify the arithmetic (total vs item subtotals minus discount):
// computed totals are the caller's responsibility.
func Validate(r *Receipt) error {
	if r.Number == "" {
		return fmt.Errorf("number is required")
	}

	if len(r.Items) == 0 {
		return fmt.Errorf("receipt has no items")
	}

	for i, item := range r.Items {
		if item.Name == "" {
			return fmt.Errorf("item[%d]: 'name' is required", i)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("item[%d] '%s': qty must be positive", i, item.Name)
		}
	}

	if r.PaymentMethod == "" {
		return fmt.Errorf("payment_method is required")
	}

	return nil
}
