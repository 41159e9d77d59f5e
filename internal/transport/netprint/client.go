// Package netprint delivers command streams to a printer reachable on the
// local network, typically the built-in printer of an Android POS device
// exposing a small HTTP agent. Delivery is fire-and-forget: the network
// stack accepting the request is all the confirmation there is.
package netprint

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chaiyopos/print-engine/internal/escpos"
	"github.com/chaiyopos/print-engine/internal/settings"
	"github.com/chaiyopos/print-engine/internal/transport"
	"github.com/chaiyopos/print-engine/pkg/receipt"
)

// rawPort is the conventional raw-printing TCP port tried as the last
// delivery candidate.
const rawPort = 9100

const probeTimeout = 2 * time.Second

// Client is the network printer transport. It keeps no session: the
// connected flag only records whether the last reachability probe
// succeeded.
type Client struct {
	store *settings.Store
	httpc *http.Client
	log   *slog.Logger

	mu        sync.Mutex
	reachable bool
}

// New builds a client with persistence injected.
func New(store *settings.Store) *Client {
	return &Client{
		store: store,
		httpc: &http.Client{Timeout: probeTimeout},
		log:   slog.Default().With("transport", "network"),
	}
}

// Connect updates the target address if one is supplied, then probes it.
// The result is a best-effort snapshot, not a session.
func (c *Client) Connect(ctx context.Context, host string, port int) bool {
	if host != "" || port != 0 {
		patch := settings.Patch{}
		if host != "" {
			patch.PrinterHost = &host
		}
		if port != 0 {
			patch.PrinterPort = &port
		}
		c.store.Update(patch)
	}

	ok := c.probe(ctx)
	c.mu.Lock()
	c.reachable = ok
	c.mu.Unlock()
	return ok
}

// IsConnected reports whether the last probe succeeded.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachable
}

// Disconnect clears the reachability flag. There is no link to tear down.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.reachable = false
	c.mu.Unlock()
	return nil
}

// Write attempts delivery against the candidate endpoints in order: the
// print endpoint, the root endpoint, then the raw-printing port. The first
// candidate the network stack accepts counts as success, which is not
// proof the printer produced output.
func (c *Client) Write(ctx context.Context, data []byte) error {
	st := c.store.Get()
	base := "http://" + net.JoinHostPort(st.PrinterHost, strconv.Itoa(st.PrinterPort))

	var lastErr error
	for _, target := range []string{base + "/print", base + "/"} {
		if err := c.post(ctx, target, data); err != nil {
			lastErr = err
			continue
		}
		c.setReachable(true)
		return nil
	}

	if err := c.writeRaw(ctx, st.PrinterHost, data); err != nil {
		lastErr = err
	} else {
		c.setReachable(true)
		return nil
	}

	c.setReachable(false)
	return transport.NewError(transport.KindWriteFailed, "write", lastErr)
}

// Print renders the receipt with the current paper and store settings and
// delivers it.
func (c *Client) Print(ctx context.Context, r *receipt.Receipt) error {
	data, err := escpos.FormatReceipt(r, c.formatOptions())
	if err != nil {
		return err
	}
	return c.Write(ctx, data)
}

// TestPrint delivers the fixed diagnostic page.
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

func (c *Client) probe(ctx context.Context) bool {
	st := c.store.Get()
	url := "http://" + net.JoinHostPort(st.PrinterHost, strconv.Itoa(st.PrinterPort)) + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Info("printer probe failed", "url", url, "err", err)
		return false
	}
	resp.Body.Close()
	// Any HTTP answer means something is listening; the status code is
	// irrelevant to reachability.
	return true
}

func (c *Client) post(ctx context.Context, url string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// writeRaw pushes the stream straight to the raw-printing port, the way
// networked ESC/POS printers have accepted jobs since long before HTTP
// agents existed.
func (c *Client) writeRaw(ctx context.Context, host string, data []byte) error {
	dialer := net.Dialer{Timeout: probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(rawPort)))
	if err != nil {
		return fmt.Errorf("raw port dial failed: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("raw port write failed: %w", err)
	}
	return nil
}

func (c *Client) setReachable(ok bool) {
	c.mu.Lock()
	c.reachable = ok
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

var _ transport.Printer = (*Client)(nil)
