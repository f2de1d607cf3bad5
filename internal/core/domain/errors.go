package domain

import "errors"

// ErrorKind classifies failures so drivers can tell a crashed service from
// a transient condition.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindDisconnected
	KindQueueFull
	KindTransport
	KindDecode
	KindImageSize
	KindHandler
	KindConfig
	KindViewport
	KindProjection
)

func (k ErrorKind) String() string {
	switch k {
	case KindDisconnected:
		return "disconnected"
	case KindQueueFull:
		return "queue_full"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindImageSize:
		return "image_size"
	case KindHandler:
		return "handler"
	case KindConfig:
		return "config"
	case KindViewport:
		return "viewport"
	case KindProjection:
		return "projection"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged error with a human-readable message and an
// optional cause.
type Error struct {
	kind ErrorKind
	msg  string
	err  error
}

// NewError builds an Error. cause may be nil.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, err: cause}
}

func (e *Error) Kind() ErrorKind { return e.kind }

func (e *Error) Message() string { return e.msg }

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

var (
	ErrSendDisconnected = NewError(KindDisconnected, "send channel disconnected", nil)
	ErrRecvDisconnected = NewError(KindDisconnected, "recv channel disconnected", nil)
	ErrQueueFull        = NewError(KindQueueFull, "request queue full", nil)
	ErrViewportClaimed  = NewError(KindViewport, "viewport already claimed", nil)
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsDisconnected reports whether err means the other side of a service
// channel is gone.
func IsDisconnected(err error) bool {
	return KindOf(err) == KindDisconnected
}
