package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	base := NewError(KindDeviceBusy, "write", errors.New("buffer full"))
	wrapped := fmt.Errorf("chunk 3: %w", base)

	assert.Equal(t, KindDeviceBusy, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestTransientAndFatalClassification(t *testing.T) {
	assert.True(t, IsTransient(NewError(KindDeviceBusy, "write", nil)))
	assert.True(t, IsTransient(NewError(KindWriteFailed, "write", nil)))
	assert.False(t, IsTransient(NewError(KindConnectionLost, "write", nil)))

	assert.True(t, IsFatal(NewError(KindConnectionLost, "write", nil)))
	assert.True(t, IsFatal(NewError(KindPermissionDenied, "connect", nil)))
	assert.False(t, IsFatal(NewError(KindDeviceBusy, "write", nil)))
}

func TestUserMessageMapsKindNotText(t *testing.T) {
	a := NewError(KindConnectionLost, "write", errors.New("ATT timeout 0x08"))
	b := NewError(KindConnectionLost, "write", errors.New("completely different cause"))

	// Same kind, same user-facing text, regardless of message content.
	assert.Equal(t, UserMessage(a), UserMessage(b))
	assert.NotEmpty(t, UserMessage(a))
	assert.NotEqual(t, UserMessage(a), UserMessage(NewError(KindDeviceBusy, "write", nil)))
}

func TestErrorStringIncludesOpAndKind(t *testing.T) {
	err := NewError(KindServiceIncompatible, "connect", nil)
	assert.Equal(t, "connect: service_incompatible", err.Error())
}
