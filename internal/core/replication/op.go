// Package replication keeps the server's authoritative indicator set as a
// versioned op log and applies it idempotently on clients.
package replication

import (
	"encoding/binary"
	"encoding/json"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/indicator"
)

// EntryID identifies one authoritative entry. Entry ids are never reused.
type EntryID uint64

type Kind uint8

const (
	OpAdd Kind = iota + 1
	OpRemove
	OpUpdate
)

func (k Kind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpUpdate:
		return "update"
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < OpAdd || k > OpUpdate {
		return nil, errors.Wrapf(ErrUnknownKind, "%d", k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "add":
		*k = OpAdd
	case "remove":
		*k = OpRemove
	case "update":
		*k = OpUpdate
	default:
		return errors.Wrapf(ErrUnknownKind, "%q", text)
	}
	return nil
}

// Op is one change to the authoritative set. Seq increases by exactly one per op.
type Op struct {
	Seq   uint64           `json:"seq"`
	Entry EntryID          `json:"entry"`
	Kind  Kind             `json:"kind"`
	State *indicator.State `json:"state,omitempty"`
}

type SnapshotEntry struct {
	Entry EntryID         `json:"entry"`
	State indicator.State `json:"state"`
}

// Snapshot is the live set as of Seq.
type Snapshot struct {
	Seq     uint64          `json:"seq"`
	Entries []SnapshotEntry `json:"entries"`
}

// checksum hashes live entries in entry order so server and client agree
// regardless of arrival order.
func checksum(states map[EntryID]indicator.State) uint64 {
	ids := make([]EntryID, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	h := xxhash.New()
	var buf [8]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		_, _ = h.Write(buf[:])
		raw, err := json.Marshal(states[id])
		if err != nil {
			continue
		}
		_, _ = h.Write(raw)
	}
	return h.Sum64()
}
