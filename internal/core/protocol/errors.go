package protocol

import "errors"

var (
	ErrConnectionClosed = errors.New("protocol: connection is closed")
	ErrUnknownFrame     = errors.New("protocol: unknown frame type")
	ErrFrameTooLarge    = errors.New("protocol: frame exceeds size limit")
	ErrUnexpectedBinary = errors.New("protocol: expected text frame")
)
