package session

import "errors"

var (
	ErrSessionExists   = errors.New("session: already open for this id")
	ErrSessionClosed   = errors.New("session: closed")
	ErrSessionNotFound = errors.New("session: not found")
	ErrNotRegistered   = errors.New("session: owning registry is not registered")
)
