package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every failure the library surfaces
type ErrorKind int

const (
	KindNotSupported ErrorKind = iota + 1
	KindNoSession
	KindBackend
	KindBus
	KindNativeCall
	KindTimeout
	KindInvalidArtwork
	KindSeekOutOfRange
	KindPermissionDenied
	KindInvalidArg
	KindInvalidConfig
)

// Error is the single error type of the taxonomy.
// Compare with errors.Is against the Err* sentinels or inspect with errors.As.
type Error struct {
	Kind ErrorKind
	// Platform is set for NotSupported and Backend errors
	Platform string
	// Message is the human-readable detail
	Message string
	// Timeout is the exceeded deadline for KindTimeout
	Timeout time.Duration
	// Requested and Duration describe a rejected seek
	Requested time.Duration
	Duration  time.Duration
	// Err is the underlying native error, if any
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotSupported:
		return fmt.Sprintf("platform not supported: %s", e.Platform)
	case KindNoSession:
		return "no active media session found"
	case KindBackend:
		return fmt.Sprintf("backend error on %s: %s", e.Platform, e.Message)
	case KindBus:
		return fmt.Sprintf("D-Bus error: %s", e.Message)
	case KindNativeCall:
		return fmt.Sprintf("native call failed: %s", e.Message)
	case KindTimeout:
		return fmt.Sprintf("operation timed out after %s", e.Timeout)
	case KindInvalidArtwork:
		return fmt.Sprintf("invalid artwork data: %s", e.Message)
	case KindSeekOutOfRange:
		return fmt.Sprintf("seek position %s is out of range (track duration: %s)", e.Requested, e.Duration)
	case KindPermissionDenied:
		return fmt.Sprintf("permission denied: %s", e.Message)
	case KindInvalidArg:
		return fmt.Sprintf("invalid argument: %s", e.Message)
	case KindInvalidConfig:
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so that errors.Is(err, ErrTimeout) works for any timeout value
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNotSupported     = &Error{Kind: KindNotSupported}
	ErrNoSession        = &Error{Kind: KindNoSession}
	ErrBackend          = &Error{Kind: KindBackend}
	ErrBus              = &Error{Kind: KindBus}
	ErrNativeCall       = &Error{Kind: KindNativeCall}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrInvalidArtwork   = &Error{Kind: KindInvalidArtwork}
	ErrSeekOutOfRange   = &Error{Kind: KindSeekOutOfRange}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrInvalidArg       = &Error{Kind: KindInvalidArg}
	ErrInvalidConfig    = &Error{Kind: KindInvalidConfig}
)

func NotSupported(platform string) error {
	return &Error{Kind: KindNotSupported, Platform: platform}
}

func NoSession() error {
	return &Error{Kind: KindNoSession}
}

func BackendError(platform, message string) error {
	return &Error{Kind: KindBackend, Platform: platform, Message: message}
}

// Unsupported is the Backend error adapters return for properties they cannot control
func Unsupported(platform, feature string) error {
	return BackendError(platform, feature+" not supported")
}

// BusError wraps a failed D-Bus round trip
func BusError(op string, err error) error {
	return &Error{Kind: KindBus, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

// NativeCallError wraps a rejected native/framework call
func NativeCallError(op string, err error) error {
	return &Error{Kind: KindNativeCall, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

func Timeout(d time.Duration) error {
	return &Error{Kind: KindTimeout, Timeout: d}
}

func InvalidArtwork(reason string) error {
	return &Error{Kind: KindInvalidArtwork, Message: reason}
}

func SeekOutOfRange(requested, duration time.Duration) error {
	return &Error{Kind: KindSeekOutOfRange, Requested: requested, Duration: duration}
}

func PermissionDenied(reason string) error {
	return &Error{Kind: KindPermissionDenied, Message: reason}
}

func InvalidArg(reason string) error {
	return &Error{Kind: KindInvalidArg, Message: reason}
}

func InvalidConfig(reason string) error {
	return &Error{Kind: KindInvalidConfig, Message: reason}
}

// KindOf returns the taxonomy kind of err, or 0 for foreign errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRetryable reports whether a caller may reasonably retry the operation
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindBus, KindNativeCall, KindBackend:
		return true
	}
	return false
}

// ResultCode is the small integer enumeration used at the C ABI boundary
type ResultCode int

const (
	CodeOK ResultCode = iota
	CodeError
	CodeNoSession
	CodeNotSupported
	CodeTimeout
	CodeInvalidArg
)

// CodeOf maps an error to its ABI result code
func CodeOf(err error) ResultCode {
	if err == nil {
		return CodeOK
	}
	switch KindOf(err) {
	case KindNoSession:
		return CodeNoSession
	case KindNotSupported:
		return CodeNotSupported
	case KindTimeout:
		return CodeTimeout
	case KindInvalidArg, KindSeekOutOfRange, KindInvalidConfig:
		return CodeInvalidArg
	}
	return CodeError
}
