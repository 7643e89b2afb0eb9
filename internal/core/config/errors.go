package config

import "errors"

var (
	ErrInvalidViewport  = errors.New("config: viewport must be positive")
	ErrInvalidArrowPool = errors.New("config: arrow pool must be positive")
	ErrInvalidAddr      = errors.New("config: server address is empty")
	ErrInvalidTickRate  = errors.New("config: tick rate must be positive")
	ErrDuplicateWidget  = errors.New("config: duplicate widget class")
	ErrEmptyWidgetClass = errors.New("config: widget template without class")
	ErrUnknownTemplate  = errors.New("config: unknown indicator template")
)
