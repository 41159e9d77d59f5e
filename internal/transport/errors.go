package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure. Callers branch on the kind, never
// on message text. UserMessage maps kinds to user-facing wording in one
// place.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserCancelled
	KindDeviceNotFound
	KindServiceIncompatible
	KindCharacteristicNotFound
	KindConnectionLost
	KindDeviceBusy
	KindWriteFailed
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindUserCancelled:
		return "user_cancelled"
	case KindDeviceNotFound:
		return "device_not_found"
	case KindServiceIncompatible:
		return "service_incompatible"
	case KindCharacteristicNotFound:
		return "characteristic_not_found"
	case KindConnectionLost:
		return "connection_lost"
	case KindDeviceBusy:
		return "device_busy"
	case KindWriteFailed:
		return "write_failed"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is a typed transport failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed: "connect", "write", ...
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a typed transport failure.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying on the same link.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindDeviceBusy, KindWriteFailed, KindUnknown:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err must abort the whole write immediately.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConnectionLost, KindPermissionDenied:
		return true
	default:
		return false
	}
}

// UserMessage translates a transport failure into user-facing Thai text.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindUserCancelled:
		return "ยกเลิกการเลือกเครื่องพิมพ์"
	case KindDeviceNotFound:
		return "ไม่พบเครื่องพิมพ์ กรุณาเปิดเครื่องพิมพ์แล้วลองใหม่"
	case KindServiceIncompatible:
		return "เครื่องพิมพ์รุ่นนี้ไม่รองรับ"
	case KindCharacteristicNotFound:
		return "เชื่อมต่อเครื่องพิมพ์ไม่สำเร็จ (ไม่พบช่องทางส่งข้อมูล)"
	case KindConnectionLost:
		return "การเชื่อมต่อหลุด กรุณาเชื่อมต่อใหม่"
	case KindDeviceBusy:
		return "เครื่องพิมพ์ไม่ตอบสนอง กรุณาลองใหม่"
	case KindWriteFailed:
		return "พิมพ์ไม่สำเร็จ กรุณาลองใหม่"
	case KindPermissionDenied:
		return "ไม่ได้รับอนุญาตให้ใช้บลูทูธ"
	default:
		return "เกิดข้อผิดพลาด กรุณาลองใหม่"
	}
}
