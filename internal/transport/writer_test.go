package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLink records every write attempt and fails according to a script
// keyed by (chunk index, attempt number).
type scriptedLink struct {
	chunks   [][]byte // successfully accepted chunks, in order
	attempts []int    // attempt count per chunk index
	fail     func(chunk, attempt int) error
}

func (l *scriptedLink) WriteChunk(p []byte) error {
	idx := len(l.chunks)
	if idx >= len(l.attempts) {
		l.attempts = append(l.attempts, 0)
	}
	l.attempts[idx]++

	if l.fail != nil {
		if err := l.fail(idx, l.attempts[idx]); err != nil {
			return err
		}
	}

	l.chunks = append(l.chunks, append([]byte(nil), p...))
	return nil
}

func TestChunkingCompleteness(t *testing.T) {
	data := make([]byte, 95)
	for i := range data {
		data[i] = byte(i)
	}

	link := &scriptedLink{}
	err := Write(context.Background(), link, WriteWithoutResponse, data)
	require.NoError(t, err)

	// 95 bytes at 20 per chunk: 5 chunks, last one short.
	require.Len(t, link.chunks, 5)
	for i, chunk := range link.chunks[:4] {
		assert.Len(t, chunk, 20, "chunk %d", i)
	}
	assert.Len(t, link.chunks[4], 15)

	assert.Equal(t, data, bytes.Join(link.chunks, nil), "chunks must reassemble the input in order")
}

func TestChunkSizeWithResponse(t *testing.T) {
	data := make([]byte, 600)

	link := &scriptedLink{}
	err := Write(context.Background(), link, WriteWithResponse, data)
	require.NoError(t, err)

	require.Len(t, link.chunks, 2)
	assert.Len(t, link.chunks[0], 512)
	assert.Len(t, link.chunks[1], 88)
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	link := &scriptedLink{
		fail: func(chunk, attempt int) error {
			if chunk == 0 && attempt < 3 {
				return NewError(KindDeviceBusy, "write", errors.New("buffer full"))
			}
			return nil
		},
	}

	err := Write(context.Background(), link, WriteWithoutResponse, []byte("hello"))
	require.NoError(t, err)

	require.Len(t, link.chunks, 1)
	assert.Equal(t, 3, link.attempts[0], "chunk should have taken exactly 3 attempts")
}

func TestRetryCeilingExhausted(t *testing.T) {
	link := &scriptedLink{
		fail: func(chunk, attempt int) error {
			return NewError(KindWriteFailed, "write", errors.New("nack"))
		},
	}

	err := Write(context.Background(), link, WriteWithoutResponse, []byte("hello"))
	require.Error(t, err)

	assert.Equal(t, KindWriteFailed, KindOf(err))
	assert.Equal(t, 3, link.attempts[0])
	assert.Empty(t, link.chunks, "no chunk should have been accepted")
}

func TestConnectionLostShortCircuits(t *testing.T) {
	data := make([]byte, 100) // 5 chunks without response

	link := &scriptedLink{
		fail: func(chunk, attempt int) error {
			if chunk == 2 {
				return NewError(KindConnectionLost, "write", errors.New("link down"))
			}
			return nil
		},
	}

	err := Write(context.Background(), link, WriteWithoutResponse, data)
	require.Error(t, err)
	assert.Equal(t, KindConnectionLost, KindOf(err))

	// Chunks 0 and 1 went through; chunk 2 was attempted once, never
	// retried, and chunks 3..4 were never attempted.
	assert.Len(t, link.chunks, 2)
	assert.Equal(t, []int{1, 1, 1}, link.attempts)
}

func TestWriteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	link := &scriptedLink{}
	err := Write(ctx, link, WriteWithoutResponse, []byte("hello"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyWrite(t *testing.T) {
	link := &scriptedLink{}
	err := Write(context.Background(), link, WriteWithoutResponse, nil)
	require.NoError(t, err)
	assert.Empty(t, link.chunks)
}
