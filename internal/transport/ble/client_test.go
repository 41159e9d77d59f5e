package ble

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaiyopos/print-engine/internal/escpos"
	"github.com/chaiyopos/print-engine/internal/settings"
	"github.com/chaiyopos/print-engine/internal/transport"
	"github.com/chaiyopos/print-engine/pkg/receipt"
)

type fakeChar struct {
	uuid     string
	writable bool
	writes   [][]byte
	fail     func(attempt int) error
	attempts int
	acked    int
	blind    int
}

func (f *fakeChar) UUID() string   { return f.uuid }
func (f *fakeChar) Writable() bool { return f.writable }

func (f *fakeChar) write(p []byte) error {
	f.attempts++
	if f.fail != nil {
		if err := f.fail(f.attempts); err != nil {
			return err
		}
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeChar) Write(p []byte) error {
	f.acked++
	return f.write(p)
}

func (f *fakeChar) WriteWithoutResponse(p []byte) error {
	f.blind++
	return f.write(p)
}

type fakeService struct {
	chars []*fakeChar
}

func (f *fakeService) DiscoverCharacteristic(uuid string) (Characteristic, error) {
	for _, ch := range f.chars {
		if ch.uuid == uuid {
			return ch, nil
		}
	}
	return nil, errors.New("characteristic not present")
}

func (f *fakeService) Characteristics() ([]Characteristic, error) {
	out := make([]Characteristic, len(f.chars))
	for i := range f.chars {
		out[i] = f.chars[i]
	}
	return out, nil
}

type fakePeripheral struct {
	addr     string
	name     string
	services map[string]*fakeService
	events   *[]string
}

func (f *fakePeripheral) Address() string { return f.addr }
func (f *fakePeripheral) Name() string    { return f.name }

func (f *fakePeripheral) DiscoverService(uuid string) (Service, error) {
	if svc, ok := f.services[uuid]; ok {
		return svc, nil
	}
	return nil, errors.New("service not present")
}

func (f *fakePeripheral) Disconnect() error {
	if f.events != nil {
		*f.events = append(*f.events, "teardown")
	}
	return nil
}

type fakeCentral struct {
	selectDev Peripheral
	selectErr error
	findDev   Peripheral
	findErr   error
	handler   func(string)
	events    *[]string
}

func (f *fakeCentral) Select(ctx context.Context, prefixes, services []string) (Peripheral, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.selectDev, nil
}

func (f *fakeCentral) Find(ctx context.Context, address string) (Peripheral, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findDev, nil
}

func (f *fakeCentral) SetLinkLossHandler(handler func(string)) {
	f.handler = handler
	if f.events != nil {
		if handler == nil {
			*f.events = append(*f.events, "unregister")
		} else {
			*f.events = append(*f.events, "register")
		}
	}
}

func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.New(filepath.Join(t.TempDir(), "printer_settings.json"))
	require.NoError(t, err)
	return store
}

// escposDevice builds a peripheral exposing the standard 18f0/2af1 layout.
func escposDevice(char *fakeChar) *fakePeripheral {
	return &fakePeripheral{
		addr: "AA:BB:CC:DD:EE:FF",
		name: "MTP-II",
		services: map[string]*fakeService{
			DefaultProfiles[0].Service: {chars: []*fakeChar{char}},
		},
	}
}

func TestConnectNegotiatesKnownProfile(t *testing.T) {
	char := &fakeChar{uuid: DefaultProfiles[0].Characteristic, writable: true}
	central := &fakeCentral{selectDev: escposDevice(char)}
	store := newTestStore(t)

	client := New(central, store)
	require.NoError(t, client.Connect(context.Background()))

	assert.True(t, client.IsConnected())
	assert.Equal(t, transport.StateConnected, client.State())

	// Device identity persisted for reconnection
	got := store.Get()
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got.DeviceID)
	assert.Equal(t, "MTP-II", got.DeviceName)
	assert.True(t, got.Connected)

	// Link-loss listener registered
	assert.NotNil(t, central.handler)
}

func TestConnectProfilePriorityOrder(t *testing.T) {
	// Device exposes the second profile's service only; negotiation must
	// fall through to it.
	char := &fakeChar{uuid: DefaultProfiles[1].Characteristic, writable: true}
	dev := &fakePeripheral{
		addr: "11:22:33:44:55:66",
		name: "BlueTooth Printer",
		services: map[string]*fakeService{
			DefaultProfiles[1].Service: {chars: []*fakeChar{char}},
		},
	}
	client := New(&fakeCentral{selectDev: dev}, newTestStore(t))

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())
}

func TestConnectCharacteristicFallbackScan(t *testing.T) {
	// Service matches but the known characteristic id does not; the first
	// writable characteristic wins.
	unknown := &fakeChar{uuid: "0000beef-0000-1000-8000-00805f9b34fb", writable: true}
	readOnly := &fakeChar{uuid: "0000dead-0000-1000-8000-00805f9b34fb", writable: false}
	dev := &fakePeripheral{
		addr: "AA:BB:CC:DD:EE:FF",
		name: "MTP-II",
		services: map[string]*fakeService{
			DefaultProfiles[0].Service: {chars: []*fakeChar{readOnly, unknown}},
		},
	}
	client := New(&fakeCentral{selectDev: dev}, newTestStore(t))

	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.Write(context.Background(), []byte("x")))
	assert.NotEmpty(t, unknown.writes)
	assert.Empty(t, readOnly.writes)
}

func TestConnectServiceIncompatible(t *testing.T) {
	dev := &fakePeripheral{addr: "AA", name: "Weird", services: map[string]*fakeService{}}
	client := New(&fakeCentral{selectDev: dev}, newTestStore(t))

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, transport.KindServiceIncompatible, transport.KindOf(err))
	assert.False(t, client.IsConnected())
}

func TestConnectCharacteristicNotFound(t *testing.T) {
	readOnly := &fakeChar{uuid: "0000dead-0000-1000-8000-00805f9b34fb", writable: false}
	dev := &fakePeripheral{
		addr: "AA",
		name: "MTP-II",
		services: map[string]*fakeService{
			DefaultProfiles[0].Service: {chars: []*fakeChar{readOnly}},
		},
	}
	client := New(&fakeCentral{selectDev: dev}, newTestStore(t))

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, transport.KindCharacteristicNotFound, transport.KindOf(err))
}

func TestConnectUserCancelled(t *testing.T) {
	central := &fakeCentral{
		selectErr: transport.NewError(transport.KindUserCancelled, "select", context.Canceled),
	}
	client := New(central, newTestStore(t))

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, transport.KindUserCancelled, transport.KindOf(err))
	assert.Equal(t, transport.StateDisconnected, client.State())
}

func TestReconnectBestEffort(t *testing.T) {
	char := &fakeChar{uuid: DefaultProfiles[0].Characteristic, writable: true}
	store := newTestStore(t)
	store.SetPairedDevice("AA:BB:CC:DD:EE:FF", "MTP-II", false)

	client := New(&fakeCentral{findDev: escposDevice(char)}, store)

	assert.True(t, client.Reconnect(context.Background()))
	assert.True(t, client.IsConnected())

	// Only once per process lifetime.
	client.Disconnect()
	assert.False(t, client.Reconnect(context.Background()))
}

func TestReconnectSilentFailure(t *testing.T) {
	store := newTestStore(t)
	store.SetPairedDevice("AA:BB:CC:DD:EE:FF", "MTP-II", false)

	central := &fakeCentral{
		findErr: transport.NewError(transport.KindDeviceNotFound, "find", errors.New("gone")),
	}
	client := New(central, store)

	assert.False(t, client.Reconnect(context.Background()))
	assert.Equal(t, transport.StateDisconnected, client.State())
}

func TestReconnectWithoutPairedDevice(t *testing.T) {
	client := New(&fakeCentral{}, newTestStore(t))
	assert.False(t, client.Reconnect(context.Background()))
}

func TestDisconnectUnregistersBeforeTeardown(t *testing.T) {
	var events []string
	char := &fakeChar{uuid: DefaultProfiles[0].Characteristic, writable: true}
	dev := escposDevice(char)
	dev.events = &events
	central := &fakeCentral{selectDev: dev, events: &events}

	client := New(central, newTestStore(t))
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Disconnect())

	assert.Equal(t, []string{"register", "unregister", "teardown"}, events)
	assert.False(t, client.IsConnected())
}

func TestLinkLossNotifiesAndPersists(t *testing.T) {
	char := &fakeChar{uuid: DefaultProfiles[0].Characteristic, writable: true}
	central := &fakeCentral{selectDev: escposDevice(char)}
	store := newTestStore(t)

	client := New(central, store)
	notified := 0
	client.SetDisconnectHandler(func() { notified++ })

	require.NoError(t, client.Connect(context.Background()))

	// An event for a different device is ignored.
	central.handler("00:00:00:00:00:00")
	assert.True(t, client.IsConnected())
	assert.Zero(t, notified)

	// The real link-loss flips state, persists and notifies once.
	central.handler("AA:BB:CC:DD:EE:FF")
	assert.False(t, client.IsConnected())
	assert.Equal(t, 1, notified)
	assert.False(t, store.Get().Connected)
}

func TestWriteRequiresConnection(t *testing.T) {
	client := New(&fakeCentral{}, newTestStore(t))

	err := client.Write(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.Equal(t, transport.KindConnectionLost, transport.KindOf(err))
}

func TestWriteFatalFlipsState(t *testing.T) {
	char := &fakeChar{
		uuid:     DefaultProfiles[0].Characteristic,
		writable: true,
		fail: func(attempt int) error {
			return transport.NewError(transport.KindConnectionLost, "write", errors.New("link down"))
		},
	}
	client := New(&fakeCentral{selectDev: escposDevice(char)}, newTestStore(t))
	require.NoError(t, client.Connect(context.Background()))

	err := client.Write(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.Equal(t, transport.KindConnectionLost, transport.KindOf(err))
	assert.False(t, client.IsConnected())
}

func TestPrintTransmitsFormattedReceipt(t *testing.T) {
	char := &fakeChar{uuid: DefaultProfiles[0].Characteristic, writable: true}
	store := newTestStore(t)
	client := New(&fakeCentral{selectDev: escposDevice(char)}, store)
	require.NoError(t, client.Connect(context.Background()))

	r := &receipt.Receipt{
		Number:        "R-77",
		Items:         []receipt.Item{{Name: "น้ำแข็งหลอด", Qty: 1, Price: 40, Subtotal: 40}},
		Total:         40,
		PaymentMethod: receipt.PaymentTransfer,
	}
	require.NoError(t, client.Print(context.Background(), r))

	st := store.Get()
	want, err := escpos.FormatReceipt(r, escpos.Options{
		Width:      st.Columns(),
		StoreName:  st.StoreName,
		FooterText: st.FooterText,
	})
	require.NoError(t, err)

	got := bytes.Join(char.writes, nil)
	assert.Equal(t, want, got, "transmitted chunks must reassemble the formatted stream")

	// Unacknowledged writes stay under the packet ceiling.
	for i, chunk := range char.writes {
		assert.LessOrEqual(t, len(chunk), 20, "chunk %d", i)
	}
}

func TestWriteAcknowledgedModeUsesLargeChunks(t *testing.T) {
	// The serial-over-GATT profile negotiates acknowledged writes: every
	// chunk goes through the characteristic's acknowledged write call and
	// the chunk ceiling rises to 512.
	char := &fakeChar{uuid: DefaultProfiles[1].Characteristic, writable: true}
	dev := &fakePeripheral{
		addr: "11:22:33:44:55:66",
		name: "BlueTooth Printer",
		services: map[string]*fakeService{
			DefaultProfiles[1].Service: {chars: []*fakeChar{char}},
		},
	}
	client := New(&fakeCentral{selectDev: dev}, newTestStore(t))
	require.NoError(t, client.Connect(context.Background()))

	data := bytes.Repeat([]byte{0xAB}, 700)
	require.NoError(t, client.Write(context.Background(), data))

	require.Len(t, char.writes, 2)
	assert.Equal(t, 512, len(char.writes[0]))
	assert.Equal(t, 188, len(char.writes[1]))
	assert.Equal(t, 2, char.acked)
	assert.Zero(t, char.blind)
}

func TestClassifyLinkError(t *testing.T) {
	assert.Equal(t, transport.KindConnectionLost,
		transport.KindOf(classifyLinkError(errors.New("device disconnected"))))
	assert.Equal(t, transport.KindDeviceBusy,
		transport.KindOf(classifyLinkError(errors.New("Operation already in progress"))))
	assert.Equal(t, transport.KindPermissionDenied,
		transport.KindOf(classifyLinkError(errors.New("write not permitted"))))
	assert.Equal(t, transport.KindWriteFailed,
		transport.KindOf(classifyLinkError(errors.New("something else"))))

	// Already-typed errors pass through untouched.
	typed := transport.NewError(transport.KindDeviceBusy, "write", nil)
	assert.Same(t, typed, classifyLinkError(typed))
}
