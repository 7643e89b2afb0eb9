package indicator

import "errors"

var (
	ErrNilDescriptor      = errors.New("indicator: nil descriptor")
	ErrOwnershipViolation = errors.New("indicator: descriptor already owned by another registry")
	ErrAlreadyRegistered  = errors.New("indicator: descriptor already registered")
	ErrNotOwner           = errors.New("indicator: registry does not own descriptor")
	ErrNilRegistry        = errors.New("indicator: nil registry")
	ErrUnknownEnum        = errors.New("indicator: unknown enum value")
)
