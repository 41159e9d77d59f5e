package transport

import (
	"context"
	"fmt"
	"time"
)

// WriteMode selects the link write semantics negotiated with the device.
type WriteMode int

const (
	// WriteWithResponse waits for a per-write acknowledgment; the link
	// paces itself, so chunks can be large.
	WriteWithResponse WriteMode = iota
	// WriteWithoutResponse sends blind; chunks must stay under the link's
	// single-packet ceiling and need longer pacing gaps.
	WriteWithoutResponse
)

// ChunkSize returns the transmission unit for the mode.
func (m WriteMode) ChunkSize() int {
	if m == WriteWithoutResponse {
		return 20
	}
	return 512
}

// interChunkDelay paces successive chunks so the device's receive buffer
// is not overrun.
func (m WriteMode) interChunkDelay() time.Duration {
	if m == WriteWithoutResponse {
		return 20 * time.Millisecond
	}
	return 5 * time.Millisecond
}

const (
	maxAttempts    = 3
	retryBaseDelay = 50 * time.Millisecond
)

// Link is one established channel to a device, able to push a single chunk.
// Implementations return typed errors so the engine can tell transient
// backpressure from a dead link.
type Link interface {
	WriteChunk(p []byte) error
}

// Write pushes data through link in order, in mode-sized chunks, retrying
// each chunk up to 3 times on transient failures. A connection-lost error
// aborts immediately; chunks already transmitted are not compensated for.
func Write(ctx context.Context, link Link, mode WriteMode, data []byte) error {
	size := mode.ChunkSize()

	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}

		if err := writeChunk(ctx, link, data[start:end]); err != nil {
			return err
		}

		if end < len(data) {
			if err := sleep(ctx, mode.interChunkDelay()); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeChunk(ctx context.Context, link Link, chunk []byte) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := link.WriteChunk(chunk)
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return err
		}
		lastErr = err

		if attempt < maxAttempts {
			// Back off a little longer on each attempt.
			if err := sleep(ctx, retryBaseDelay*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("chunk failed after %d attempts: %w", maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
