package widget

import "errors"

var (
	ErrUnknownClass = errors.New("widget: unknown class")
	ErrEmptyClass   = errors.New("widget: empty class")
)
