// Package settings persists the printer configuration record: the paired
// device identity, paper width, network printer address and the
// store-identity strings stamped on every receipt.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// SchemaVersion is the current persisted-record version. Records stored by
// older builds carry a lower (or absent) version and are migrated on load.
const SchemaVersion = 1

// Paper widths in millimetres and the column counts they imply
const (
	PaperNarrow = 58 // 32 columns
	PaperWide   = 80 // 48 columns
)

// Settings is the persisted configuration record shared by both printer
// transports.
type Settings struct {
	SchemaVersion int `json:"schema_version"`

	// Previously paired wireless device
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	Connected  bool   `json:"connected"`

	PaperWidth int `json:"paper_width"` // 58 or 80

	StoreName    string `json:"store_name"`
	StoreAddress string `json:"store_address,omitempty"`
	StorePhone   string `json:"store_phone,omitempty"`
	FooterText   string `json:"footer_text,omitempty"`

	// Built-in network printer endpoint
	PrinterHost string `json:"printer_host,omitempty"`
	PrinterPort int    `json:"printer_port,omitempty"`
}

// Columns returns the character column count implied by the paper width.
func (s Settings) Columns() int {
	if s.PaperWidth == PaperWide {
		return 48
	}
	return 32
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	DeviceID     *string `json:"device_id,omitempty"`
	DeviceName   *string `json:"device_name,omitempty"`
	Connected    *bool   `json:"connected,omitempty"`
	PaperWidth   *int    `json:"paper_width,omitempty"`
	StoreName    *string `json:"store_name,omitempty"`
	StoreAddress *string `json:"store_address,omitempty"`
	StorePhone   *string `json:"store_phone,omitempty"`
	FooterText   *string `json:"footer_text,omitempty"`
	PrinterHost  *string `json:"printer_host,omitempty"`
	PrinterPort  *int    `json:"printer_port,omitempty"`
}

// Store owns the settings file. Every mutation is written through to disk
// immediately so the record survives a process restart.
type Store struct {
	filePath string
	current  Settings
	log      *slog.Logger
	mu       sync.RWMutex
}

// Defaults returns the record created on first use.
func Defaults() Settings {
	return Settings{
		SchemaVersion: SchemaVersion,
		PaperWidth:    PaperNarrow,
		StoreName:     "ร้านค้า",
		FooterText:    "ขอบคุณที่ใช้บริการ",
		PrinterHost:   "127.0.0.1",
		PrinterPort:   9100,
	}
}

// New opens (or creates) the settings store at filePath.
func New(filePath string) (*Store, error) {
	s := &Store{
		filePath: filePath,
		current:  Defaults(),
		log:      slog.Default().With("component", "settings"),
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		// First run: persist the defaults so the file exists.
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("failed to create settings file: %w", err)
		}
	}

	return s, nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges a partial patch into the stored record and persists it.
// An empty patch is a no-op that leaves every field unchanged.
func (s *Store) Update(p Patch) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.DeviceID != nil {
		s.current.DeviceID = *p.DeviceID
	}
	if p.DeviceName != nil {
		s.current.DeviceName = *p.DeviceName
	}
	if p.Connected != nil {
		s.current.Connected = *p.Connected
	}
	if p.PaperWidth != nil {
		s.current.PaperWidth = *p.PaperWidth
	}
	if p.StoreName != nil {
		s.current.StoreName = *p.StoreName
	}
	if p.StoreAddress != nil {
		s.current.StoreAddress = *p.StoreAddress
	}
	if p.StorePhone != nil {
		s.current.StorePhone = *p.StorePhone
	}
	if p.FooterText != nil {
		s.current.FooterText = *p.FooterText
	}
	if p.PrinterHost != nil {
		s.current.PrinterHost = *p.PrinterHost
	}
	if p.PrinterPort != nil {
		s.current.PrinterPort = *p.PrinterPort
	}

	if err := s.save(); err != nil {
		// The in-memory record stays authoritative; the next successful
		// save catches the file up.
		s.log.Warn("settings write-through failed", "file", s.filePath, "err", err)
	}

	return s.current
}

// SetPairedDevice records the identity of a successfully connected device.
func (s *Store) SetPairedDevice(id, name string, connected bool) {
	s.Update(Patch{DeviceID: &id, DeviceName: &name, Connected: &connected})
}

// SetConnected records only the connection flag.
func (s *Store) SetConnected(connected bool) {
	s.Update(Patch{Connected: &connected})
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var stored Settings
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	s.current = migrate(stored)
	if s.current.SchemaVersion != stored.SchemaVersion {
		return s.save()
	}
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

// migrate upgrades a stored record to the current schema version. Version 0
// records predate the version field; they get defaults for the fields that
// did not exist yet.
func migrate(stored Settings) Settings {
	if stored.SchemaVersion >= SchemaVersion {
		return stored
	}

	def := Defaults()
	if stored.PaperWidth != PaperNarrow && stored.PaperWidth != PaperWide {
		stored.PaperWidth = def.PaperWidth
	}
	if stored.StoreName == "" {
		stored.StoreName = def.StoreName
	}
	if stored.FooterText == "" {
		stored.FooterText = def.FooterText
	}
	if stored.PrinterHost == "" {
		stored.PrinterHost = def.PrinterHost
	}
	if stored.PrinterPort == 0 {
		stored.PrinterPort = def.PrinterPort
	}
	stored.SchemaVersion = SchemaVersion
	return stored
}
