// ABOUTME: Error taxonomy for stream sessions
// ABOUTME: Distinguishes transport failures, protocol violations and missing shared memory
package stream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stream error
type ErrorKind int

const (
	// KindIO is a transport failure on either socket, or a failure to map shared memory
	KindIO ErrorKind = iota
	// KindMessageType is a message that does not fit the current protocol state
	KindMessageType
	// KindNoShm is an operation that needs shared memory before it was attached
	KindNoShm
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindMessageType:
		return "message_type"
	case KindNoShm:
		return "no_shm"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by stream operations. Compare with errors.Is against
// ErrIO, ErrMessageType or ErrNoShm; Unwrap exposes the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

var (
	ErrIO          = &Error{Kind: KindIO}
	ErrMessageType = &Error{Kind: KindMessageType}
	ErrNoShm       = &Error{Kind: KindNoShm}

	// ErrFrameSizeMismatch is wrapped when a region's frame size does not
	// match the stream's format
	ErrFrameSizeMismatch = errors.New("shared memory frame size does not match stream format")
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindIO:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "io error"
	case KindMessageType:
		if e.Err != nil {
			return "message type error: " + e.Err.Error()
		}
		return "message type error"
	case KindNoShm:
		return "shared memory area is not created"
	default:
		return fmt.Sprintf("stream error (%s)", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target carries no cause
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil
}

// IsIOError reports whether err is a stream I/O failure. Callers treat these
// as fatal for the stream.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO)
}

func ioError(err error) *Error {
	return &Error{Kind: KindIO, Err: err}
}

func messageTypeError(format string, args ...any) *Error {
	return &Error{Kind: KindMessageType, Err: fmt.Errorf(format, args...)}
}
