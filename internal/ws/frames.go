package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Frame type discriminators, one JSON object per frame.
const (
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeChat       = "chat"
	TypeConnected  = "connected"
	TypeJoinedRoom = "joined_room"
	TypeLeftRoom   = "left_room"
	TypeError      = "error"
)

var errBadRoomID = errors.New("room id is not a positive integer")

// inboundFrame is the superset of fields a client may send. RoomID is
// kept raw because clients send it as either a JSON number or a string.
type inboundFrame struct {
	Type    string          `json:"type"`
	RoomID  json.RawMessage `json:"roomId"`
	Message string          `json:"message"`
}

type connectedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// roomAckFrame answers join_room / leave_room to the requester only.
type roomAckFrame struct {
	Type   string `json:"type"`
	RoomID int64  `json:"roomId"`
}

type chatFrame struct {
	Type      string `json:"type"`
	ChatID    int64  `json:"chatId"`
	Message   string `json:"message"`
	RoomID    int64  `json:"roomId"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encode marshals an outbound frame. Frames are plain structs of
// primitives, so marshaling cannot fail.
func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// parseRoomID accepts a JSON number or a numeric string and requires a
// positive integer.
func parseRoomID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, errBadRoomID
	}
	s := string(raw)
	if s[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errBadRoomID
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRoomID
	}
	return id, nil
}
