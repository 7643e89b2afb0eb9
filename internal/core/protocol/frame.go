// Package protocol defines the replication wire frames and the websocket
// connection that carries them.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/replication"
	"github.com/zeusync/indicator/pkg/generic"
)

var buffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

type FrameType string

const (
	// FrameSnapshot carries the full live set. Sent on connect and when the
	// requested ops were compacted.
	FrameSnapshot FrameType = "snapshot"
	// FrameOps carries consecutive ops.
	FrameOps FrameType = "ops"
	// FrameResync asks the server for every op after Since.
	FrameResync FrameType = "resync"
)

type Frame struct {
	Type     FrameType             `json:"type"`
	Since    uint64                `json:"since,omitempty"`
	Snapshot *replication.Snapshot `json:"snapshot,omitempty"`
	Ops      []replication.Op      `json:"ops,omitempty"`
}

func SnapshotFrame(s replication.Snapshot) Frame {
	return Frame{Type: FrameSnapshot, Snapshot: &s}
}

func OpsFrame(ops ...replication.Op) Frame {
	return Frame{Type: FrameOps, Ops: ops}
}

func ResyncFrame(since uint64) Frame {
	return Frame{Type: FrameResync, Since: since}
}

func (f Frame) Validate() error {
	switch f.Type {
	case FrameSnapshot:
		if f.Snapshot == nil {
			return errors.Wrap(ErrUnknownFrame, "snapshot frame without snapshot")
		}
	case FrameOps, FrameResync:
	default:
		return errors.Wrapf(ErrUnknownFrame, "%q", f.Type)
	}
	return nil
}

// Marshal encodes f. The returned slice is owned by the caller.
func Marshal(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := buffers.Get()
	defer buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(f); err != nil {
		return nil, errors.Wrap(err, "marshal frame")
	}
	return bytes.Clone(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func Unmarshal(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, errors.Wrap(err, "unmarshal frame")
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}
