package receipt

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parse parses a receipt payload from a byte slice
func Parse(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipt: %w", err)
	}

	if err := Validate(&r); err != nil {
		return nil, err
	}

	return &r, nil
}

// ParseFile parses a receipt payload from disk
func ParseFile(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	return Parse(data)
}

// ToJSON converts a Receipt to JSON bytes
func (r *Receipt) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
