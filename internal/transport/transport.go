// Package transport holds the pieces shared by both printer transports:
// the typed failure taxonomy, the connection state machine values and the
// chunked write engine.
package transport

import (
	"context"

	"github.com/chaiyopos/print-engine/pkg/receipt"
)

// ConnState is the connection lifecycle of a stateful transport.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Printer is the operation surface a transport exposes to the POS layer.
// Implementations are constructible service objects with their persistence
// and negotiation policy injected, so tests can run against doubles.
type Printer interface {
	IsConnected() bool
	Print(ctx context.Context, r *receipt.Receipt) error
	TestPrint(ctx context.Context) error
	Write(ctx context.Context, data []byte) error
	Disconnect() error
}
