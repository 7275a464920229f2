package response

import (
	"encoding/json"

	"github.com/mcoot/wordbomb/internal/api/apierr"
	"github.com/mcoot/wordbomb/internal/model"
)

// Outbound frame types that are not session events
const (
	FrameSnapshot = "snapshot"
	FrameJoined   = "joined"
	FrameError    = "error"
)

// Frame is an outbound websocket message. Session events are sent as model.Event,
// which has the same type and data fields plus a revision.
type Frame struct {
	Type     string          `json:"type"`
	Revision uint64          `json:"revision,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// JoinedData acknowledges join_game to the caller
type JoinedData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SnapshotFrame wraps a snapshot for the wire
func SnapshotFrame(snap model.Snapshot) ([]byte, error) {
	return encodeFrame(FrameSnapshot, snap.Revision, snap)
}

// JoinedFrame wraps a join acknowledgement
func JoinedFrame(p model.Player) ([]byte, error) {
	return encodeFrame(FrameJoined, 0, JoinedData{ID: string(p.ID), Name: p.Name})
}

// ErrorFrame wraps an error for the caller
func ErrorFrame(err error) ([]byte, error) {
	_, apiErr := apierr.Resolve(err)
	return encodeFrame(FrameError, 0, apiErr)
}

// EventFrame encodes a session event
func EventFrame(e model.Event) ([]byte, error) {
	return json.Marshal(e)
}

func encodeFrame(frameType string, revision uint64, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: frameType, Revision: revision, Data: raw})
}
