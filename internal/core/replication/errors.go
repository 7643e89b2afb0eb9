package replication

import "errors"

var (
	ErrGap           = errors.New("replication: op sequence gap")
	ErrCompacted     = errors.New("replication: requested ops were compacted, resync from snapshot")
	ErrUnknownKind   = errors.New("replication: unknown op kind")
	ErrMissingState  = errors.New("replication: op carries no state")
	ErrNotReplicated = errors.New("replication: descriptor is not in the set")
)
