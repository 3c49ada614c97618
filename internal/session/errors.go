package session

import (
	"errors"
	"fmt"
)

// Kind classifies a session error.
type Kind int

const (
	KindUnknown Kind = iota
	KindResourceLoad
	KindDevice
	KindNotFound
	KindDecode
	KindConversion
	KindDetection
	KindSequence
	KindInvalidArgument
)

// String returns the error kind name used on the wire.
func (k Kind) String() string {
	switch k {
	case KindResourceLoad:
		return "ResourceLoadError"
	case KindDevice:
		return "DeviceError"
	case KindNotFound:
		return "NotFoundError"
	case KindDecode:
		return "DecodeError"
	case KindConversion:
		return "ConversionError"
	case KindDetection:
		return "DetectionError"
	case KindSequence:
		return "SequenceError"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return "UnknownError"
	}
}

// Error is returned by every failing session operation.
type Error struct {
	Kind Kind
	Op   Op
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op Op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}
