package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/chaiyopos/print-engine/internal/transport"
)

// hostCentral adapts tinygo.org/x/bluetooth to the Central interface.
type hostCentral struct {
	adapter *bluetooth.Adapter

	mu       sync.Mutex
	linkLoss func(address string)
}

// NewCentral enables the default host Bluetooth adapter.
func NewCentral() (Central, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, transport.NewError(transport.KindPermissionDenied, "enable", err)
	}

	c := &hostCentral{adapter: adapter}

	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		c.mu.Lock()
		handler := c.linkLoss
		c.mu.Unlock()
		if handler != nil {
			handler(device.Address.String())
		}
	})

	return c, nil
}

func (c *hostCentral) SetLinkLossHandler(handler func(address string)) {
	c.mu.Lock()
	c.linkLoss = handler
	c.mu.Unlock()
}

func (c *hostCentral) Select(ctx context.Context, prefixes, services []string) (Peripheral, error) {
	candidates := make([]bluetooth.UUID, 0, len(services))
	for _, s := range services {
		if u, err := bluetooth.ParseUUID(s); err == nil {
			candidates = append(candidates, u)
		}
	}

	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		err := c.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !matchesPrinter(result, prefixes, candidates) {
				return
			}
			select {
			case found <- result:
			default:
			}
			a.StopScan()
		})
		if err != nil {
			scanErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		c.adapter.StopScan()
		return nil, transport.NewError(transport.KindUserCancelled, "select", ctx.Err())
	case err := <-scanErr:
		return nil, transport.NewError(transport.KindDeviceNotFound, "select", err)
	case result := <-found:
		return c.connect(result.Address, result.LocalName())
	}
}

func (c *hostCentral) Find(ctx context.Context, address string) (Peripheral, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.NewError(transport.KindUserCancelled, "find", err)
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, transport.NewError(transport.KindDeviceNotFound, "find",
			fmt.Errorf("bad stored address %q: %w", address, err))
	}

	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	return c.connect(addr, "")
}

func (c *hostCentral) connect(addr bluetooth.Address, name string) (Peripheral, error) {
	dev, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, transport.NewError(transport.KindDeviceNotFound, "connect", err)
	}
	return &hostPeripheral{dev: dev, name: name, addr: addr.String()}, nil
}

// matchesPrinter accepts a scan result whose advertised name carries a
// known vendor prefix or that advertises one of the candidate services.
func matchesPrinter(result bluetooth.ScanResult, prefixes []string, services []bluetooth.UUID) bool {
	name := result.LocalName()
	for _, prefix := range prefixes {
		if name != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, svc := range services {
		if result.HasServiceUUID(svc) {
			return true
		}
	}
	return false
}

type hostPeripheral struct {
	dev  bluetooth.Device
	name string
	addr string
}

func (p *hostPeripheral) Address() string { return p.addr }
func (p *hostPeripheral) Name() string    { return p.name }

func (p *hostPeripheral) DiscoverService(uuid string) (Service, error) {
	u, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	services, err := p.dev.DiscoverServices([]bluetooth.UUID{u})
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not present", uuid)
	}
	return &hostService{svc: services[0]}, nil
}

func (p *hostPeripheral) Disconnect() error {
	return p.dev.Disconnect()
}

type hostService struct {
	svc bluetooth.DeviceService
}

func (s *hostService) DiscoverCharacteristic(uuid string) (Characteristic, error) {
	u, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	chars, err := s.svc.DiscoverCharacteristics([]bluetooth.UUID{u})
	if err != nil {
		return nil, err
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("characteristic %s not present", uuid)
	}
	return &hostCharacteristic{ch: chars[0]}, nil
}

func (s *hostService) Characteristics() ([]Characteristic, error) {
	chars, err := s.svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, err
	}

	out := make([]Characteristic, len(chars))
	for i := range chars {
		out[i] = &hostCharacteristic{ch: chars[i]}
	}
	return out, nil
}

type hostCharacteristic struct {
	ch bluetooth.DeviceCharacteristic
}

func (c *hostCharacteristic) UUID() string {
	return c.ch.UUID().String()
}

// Writable is best-effort: the host API does not surface property bits, so
// characteristics outside the known matrix are assumed writable and the
// first write surfaces the truth.
func (c *hostCharacteristic) Writable() bool {
	return true
}

func (c *hostCharacteristic) Write(p []byte) error {
	_, err := c.ch.Write(p)
	return err
}

func (c *hostCharacteristic) WriteWithoutResponse(p []byte) error {
	_, err := c.ch.WriteWithoutResponse(p)
	return err
}
