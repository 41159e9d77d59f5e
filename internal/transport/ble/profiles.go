// Package ble implements the wireless printer transport: scanning,
// connection lifecycle, vendor service negotiation and chunked delivery
// over a GATT write characteristic.
package ble

import "github.com/chaiyopos/print-engine/internal/transport"

// Profile describes one vendor's GATT layout for the same functional
// capability. Thermal printer makers never agreed on identifiers, so
// connection negotiation walks this list in priority order and the first
// profile the hardware answers to wins. Adding a vendor means adding an
// entry, not touching control flow.
type Profile struct {
	Name           string
	NamePrefixes   []string
	Service        string
	Characteristic string
	Mode           transport.WriteMode
}

// DefaultProfiles is the compatibility matrix, most common hardware first.
var DefaultProfiles = []Profile{
	{
		// Generic ESC/POS BLE modules (Xprinter, Goojprt and clones)
		Name:           "escpos-18f0",
		NamePrefixes:   []string{"MTP", "PT-", "Printer", "XP-"},
		Service:        "000018f0-0000-1000-8000-00805f9b34fb",
		Characteristic: "00002af1-0000-1000-8000-00805f9b34fb",
		Mode:           transport.WriteWithoutResponse,
	},
	{
		// ISSC/Microchip transparent UART bridges
		Name:           "issc-uart",
		NamePrefixes:   []string{"BlueTooth Printer", "BTP"},
		Service:        "49535343-fe7d-4ae5-8fa9-9fafd205e455",
		Characteristic: "49535343-8841-43f4-a8d4-ecbe34729bb3",
		Mode:           transport.WriteWithResponse,
	},
	{
		// Phomemo-style portable printers
		Name:           "phomemo-ff00",
		NamePrefixes:   []string{"T02", "M02", "Phomemo"},
		Service:        "0000ff00-0000-1000-8000-00805f9b34fb",
		Characteristic: "0000ff02-0000-1000-8000-00805f9b34fb",
		Mode:           transport.WriteWithoutResponse,
	},
}

// namePrefixes collects the acceptable device-name prefixes of every
// profile, preserving priority order.
func namePrefixes(profiles []Profile) []string {
	var out []string
	for _, p := range profiles {
		out = append(out, p.NamePrefixes...)
	}
	return out
}

// serviceUUIDs collects the candidate service identifiers in priority order.
func serviceUUIDs(profiles []Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Service)
	}
	return out
}
