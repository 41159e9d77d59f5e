package ble

import "context"

// Central is the slice of the host Bluetooth stack the client needs. The
// production implementation wraps tinygo.org/x/bluetooth; tests inject
// fakes, which keeps the negotiation policy deterministic.
type Central interface {
	// Select runs the device-selection interaction: scan for a device whose
	// advertised name matches one of the prefixes (or that advertises one
	// of the candidate services) and connect to it. Cancelling ctx before
	// a device was chosen is the user declining, not a hardware failure.
	Select(ctx context.Context, prefixes, services []string) (Peripheral, error)

	// Find connects to a previously paired device by address without any
	// selection interaction.
	Find(ctx context.Context, address string) (Peripheral, error)

	// SetLinkLossHandler registers the callback invoked when the stack
	// reports an established link dropped. A nil handler unregisters.
	SetLinkLossHandler(handler func(address string))
}

// Peripheral is one connected device.
type Peripheral interface {
	Address() string
	Name() string
	DiscoverService(uuid string) (Service, error)
	Disconnect() error
}

// Service is one matched GATT service.
type Service interface {
	DiscoverCharacteristic(uuid string) (Characteristic, error)
	// Characteristics lists everything the service exposes, for the
	// fallback scan when no known characteristic identifier matched.
	Characteristics() ([]Characteristic, error)
}

// Characteristic is a writable channel on a service.
type Characteristic interface {
	UUID() string
	Writable() bool
	Write(p []byte) error
	WriteWithoutResponse(p []byte) error
}
