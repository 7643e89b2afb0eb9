package canvas

import "errors"

var (
	ErrNoRegistry = errors.New("canvas: registry is required")
	ErrNoScene    = errors.New("canvas: scene is required")
	ErrNoFactory  = errors.New("canvas: widget factory is required")
)
