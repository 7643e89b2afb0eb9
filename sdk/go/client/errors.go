package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrResyncThrottled  = errors.New("resync request throttled")
	ErrNilMirror        = errors.New("nil mirror")
)
