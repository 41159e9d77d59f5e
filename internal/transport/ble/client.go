package ble

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/chaiyopos/print-engine/internal/escpos"
	"github.com/chaiyopos/print-engine/internal/settings"
	"github.com/chaiyopos/print-engine/internal/transport"
	"github.com/chaiyopos/print-engine/pkg/receipt"
)

// Client manages one wireless printer connection. State moves
// Disconnected -> Connecting -> Connected, and back to Disconnected on an
// explicit Disconnect or a hardware link-loss event.
//
// The mutex guards the state fields only. Concurrent Print calls are not
// serialized against each other; interleaving chunk writes to the same
// device corrupts the stream on the wire, so callers must serialize.
type Client struct {
	central  Central
	store    *settings.Store
	profiles []Profile
	log      *slog.Logger

	mu             sync.Mutex
	state          transport.ConnState
	dev            Peripheral
	char           Characteristic
	mode           transport.WriteMode
	profileName    string
	onDisconnect   func()
	reconnectTried bool
}

var _ transport.Printer = (*Client)(nil)

var errNoAdapter = errors.New("no bluetooth adapter")

// New builds a client with the negotiation matrix and persistence injected.
func New(central Central, store *settings.Store) *Client {
	return &Client{
		central:  central,
		store:    store,
		profiles: DefaultProfiles,
		log:      slog.Default().With("transport", "ble"),
	}
}

// State returns a snapshot of the connection state.
func (c *Client) State() transport.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a negotiated link is up.
func (c *Client) IsConnected() bool {
	return c.State() == transport.StateConnected
}

// SetDisconnectHandler registers the single notification callback invoked
// on a hardware-reported link loss. Zero or one subscriber is supported by
// contract; a later registration replaces the earlier one.
func (c *Client) SetDisconnectHandler(handler func()) {
	c.mu.Lock()
	c.onDisconnect = handler
	c.mu.Unlock()
}

// Connect runs the device-selection interaction and negotiates a writable
// channel. On success the device identity is persisted for reconnection.
func (c *Client) Connect(ctx context.Context) error {
	if c.central == nil {
		return transport.NewError(transport.KindPermissionDenied, "connect", errNoAdapter)
	}

	c.setState(transport.StateConnecting)

	dev, err := c.central.Select(ctx, namePrefixes(c.profiles), serviceUUIDs(c.profiles))
	if err != nil {
		c.setState(transport.StateDisconnected)
		return err
	}

	return c.establish(dev)
}

// Reconnect re-runs negotiation against the previously paired device. It
// is attempted once per process lifetime, returns false instead of an
// error on any failure, and never shows a selection interaction.
func (c *Client) Reconnect(ctx context.Context) bool {
	c.mu.Lock()
	if c.reconnectTried || c.state != transport.StateDisconnected {
		c.mu.Unlock()
		return false
	}
	c.reconnectTried = true
	c.mu.Unlock()

	stored := c.store.Get()
	if c.central == nil || stored.DeviceID == "" {
		return false
	}

	c.setState(transport.StateConnecting)

	dev, err := c.central.Find(ctx, stored.DeviceID)
	if err != nil {
		c.log.Info("reconnect skipped", "device", stored.DeviceID, "reason", err)
		c.setState(transport.StateDisconnected)
		return false
	}

	if err := c.establish(dev); err != nil {
		c.log.Info("reconnect negotiation failed", "device", stored.DeviceID, "reason", err)
		return false
	}
	return true
}

// Disconnect tears the link down deliberately. The link-loss listener is
// unregistered first so it cannot fire for a disconnect we asked for.
func (c *Client) Disconnect() error {
	if c.central != nil {
		c.central.SetLinkLossHandler(nil)
	}

	c.mu.Lock()
	dev := c.dev
	c.dev = nil
	c.char = nil
	c.state = transport.StateDisconnected
	c.mu.Unlock()

	c.store.SetConnected(false)

	if dev != nil {
		if err := dev.Disconnect(); err != nil {
			c.log.Warn("teardown error ignored", "err", err)
		}
	}
	return nil
}

// Write pushes a command stream to the device through the chunked write
// engine. A connection-lost failure flips the state immediately; chunks
// already transmitted stay on the wire.
func (c *Client) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	if c.state != transport.StateConnected || c.char == nil {
		c.mu.Unlock()
		return transport.NewError(transport.KindConnectionLost, "write",
			errors.New("printer not connected"))
	}
	link := &charLink{char: c.char, mode: c.mode}
	mode := c.mode
	c.mu.Unlock()

	err := transport.Write(ctx, link, mode, data)
	if err != nil && transport.KindOf(err) == transport.KindConnectionLost {
		c.markDisconnected()
	}
	return err
}

// Print renders the receipt with the current paper and store settings and
// transmits it.
func (c *Client) Print(ctx context.Context, r *receipt.Receipt) error {
	data, err := escpos.FormatReceipt(r, c.formatOptions())
	if err != nil {
		return err
	}
	return c.Write(ctx, data)
}

// TestPrint transmits the fixed diagnostic page.
func (c *Client) TestPrint(ctx context.Context) error {
	return c.Write(ctx, escpos.TestPage(c.formatOptions()))
}

// Settings returns a snapshot of the persisted configuration.
func (c *Client) Settings() settings.Settings {
	return c.store.Get()
}

// UpdateSettings merges a partial update and persists it.
func (c *Client) UpdateSettings(p settings.Patch) settings.Settings {
	return c.store.Update(p)
}

// establish negotiates a channel on an already connected device and wires
// up state, persistence and the link-loss listener.
func (c *Client) establish(dev Peripheral) error {
	char, mode, profileName, err := negotiate(dev, c.profiles)
	if err != nil {
		dev.Disconnect()
		c.setState(transport.StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.dev = dev
	c.char = char
	c.mode = mode
	c.profileName = profileName
	c.state = transport.StateConnected
	c.mu.Unlock()

	c.store.SetPairedDevice(dev.Address(), dev.Name(), true)
	c.central.SetLinkLossHandler(c.handleLinkLoss)

	c.log.Info("printer connected",
		"device", dev.Address(), "name", dev.Name(), "profile", profileName)
	return nil
}

// negotiate walks the profile matrix: first each candidate service in
// priority order, then the known characteristic, then a fallback scan of
// the matched service for any writable channel.
func negotiate(dev Peripheral, profiles []Profile) (Characteristic, transport.WriteMode, string, error) {
	serviceMatched := false

	for _, p := range profiles {
		svc, err := dev.DiscoverService(p.Service)
		if err != nil {
			continue
		}
		serviceMatched = true

		if char, err := svc.DiscoverCharacteristic(p.Characteristic); err == nil {
			return char, p.Mode, p.Name, nil
		}

		chars, err := svc.Characteristics()
		if err != nil {
			continue
		}
		for _, char := range chars {
			if char.Writable() {
				return char, p.Mode, p.Name + "/fallback", nil
			}
		}
	}

	if serviceMatched {
		return nil, 0, "", transport.NewError(transport.KindCharacteristicNotFound, "connect",
			errors.New("no writable characteristic on matched service"))
	}
	return nil, 0, "", transport.NewError(transport.KindServiceIncompatible, "connect",
		errors.New("no candidate service matched"))
}

// handleLinkLoss reacts to the stack reporting an asynchronous disconnect
// of the device we hold.
func (c *Client) handleLinkLoss(address string) {
	c.mu.Lock()
	if c.state != transport.StateConnected || c.dev == nil || c.dev.Address() != address {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.Warn("printer link lost", "device", address)
	c.markDisconnected()
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.dev = nil
	c.char = nil
	c.state = transport.StateDisconnected
	handler := c.onDisconnect
	c.mu.Unlock()

	c.store.SetConnected(false)
	if handler != nil {
		handler()
	}
}

func (c *Client) setState(s transport.ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) formatOptions() escpos.Options {
	st := c.store.Get()
	return escpos.Options{
		Width:        st.Columns(),
		StoreName:    st.StoreName,
		StoreAddress: st.StoreAddress,
		StorePhone:   st.StorePhone,
		FooterText:   st.FooterText,
	}
}

// charLink adapts the negotiated characteristic to the write engine and
// maps raw stack errors to the failure taxonomy in one place.
type charLink struct {
	char Characteristic
	mode transport.WriteMode
}

func (l *charLink) WriteChunk(p []byte) error {
	var err error
	if l.mode == transport.WriteWithoutResponse {
		err = l.char.WriteWithoutResponse(p)
	} else {
		err = l.char.Write(p)
	}
	if err == nil {
		return nil
	}
	return classifyLinkError(err)
}

// classifyLinkError maps a host-stack write error onto the taxonomy. This
// is the single place raw error text is inspected; everything above deals
// in kinds.
func classifyLinkError(err error) error {
	var te *transport.Error
	if errors.As(err, &te) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not connected"),
		strings.Contains(msg, "disconnected"),
		strings.Contains(msg, "no such device"):
		return transport.NewError(transport.KindConnectionLost, "write", err)
	case strings.Contains(msg, "in progress"),
		strings.Contains(msg, "busy"),
		strings.Contains(msg, "again"):
		return transport.NewError(transport.KindDeviceBusy, "write", err)
	case strings.Contains(msg, "not permitted"),
		strings.Contains(msg, "not authorized"),
		strings.Contains(msg, "permission"):
		return transport.NewError(transport.KindPermissionDenied, "write", err)
	default:
		return transport.NewError(transport.KindWriteFailed, "write", err)
	}
}
