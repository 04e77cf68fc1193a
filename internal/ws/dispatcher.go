package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/iamapoorv476/my-excildrawapp/pkg/metrics"
)

// Frame-level failures. All are reported to the sender as an error
// frame; none of them terminates the session.
var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMalformedRoomID  = errors.New("invalid room id")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotJoined        = errors.New("join the room first")
	ErrEmptyMessage     = errors.New("empty message")
	ErrStoreUnavailable = errors.New("store unavailable, try again")
)

const storeTimeout = 5 * time.Second

// RoomStore is what the dispatcher needs from the store of record. The
// store owns room identity and assigns chat ids; the hub never does.
type RoomStore interface {
	RoomExists(ctx context.Context, roomID int64) (bool, error)
	SaveChat(ctx context.Context, roomID int64, userID, body string) (int64, error)
}

// Dispatcher validates inbound frames against registry state and turns
// them into registry mutations, store writes, and outbound frames.
// Validation completes before any mutation: a failed frame leaves the
// registry and the store untouched.
type Dispatcher struct {
	log   *slog.Logger
	reg   *Registry
	store RoomStore
	bcast *Broadcaster

	mu    sync.Mutex
	order map[int64]*sync.Mutex // per-room chat ordering locks
}

func NewDispatcher(log *slog.Logger, reg *Registry, store RoomStore, bcast *Broadcaster) *Dispatcher {
	return &Dispatcher{
		log: log, reg: reg, store: store, bcast: bcast,
		order: map[int64]*sync.Mutex{},
	}
}

// roomLock returns the ordering lock for a room, creating it on first
// use. Holding it across persist+broadcast keeps delivery order equal
// to persist-completion order within the room; rooms stay independent.
func (d *Dispatcher) roomLock(roomID int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.order[roomID]
	if l == nil {
		l = &sync.Mutex{}
		d.order[roomID] = l
	}
	return l
}

// Dispatch handles one inbound frame from c. Every failure is answered
// with an error frame to c; the connection stays active regardless.
func (d *Dispatcher) Dispatch(ctx context.Context, c Client, raw []byte) {
	// Transport-level garbage that is not JSON at all is logged only;
	// valid JSON of the wrong shape is answered with an error frame.
	if !json.Valid(raw) {
		d.log.Warn("frame.unparseable", "connId", c.ID(), "bytes", len(raw))
		return
	}
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		d.log.Warn("frame.malformed", "connId", c.ID(), "err", err)
		d.sendErr(c, ErrMalformedFrame)
		return
	}
	metrics.FramesIn.WithLabelValues(frameLabel(f.Type)).Inc()

	var err error
	switch f.Type {
	case TypeJoinRoom:
		err = d.joinRoom(ctx, c, f)
	case TypeLeaveRoom:
		err = d.leaveRoom(c, f)
	case TypeChat:
		err = d.chat(ctx, c, f)
	default:
		d.log.Warn("frame.unknown", "connId", c.ID(), "type", f.Type)
		return
	}
	if err != nil {
		d.sendErr(c, err)
	}
}

func (d *Dispatcher) joinRoom(ctx context.Context, c Client, f inboundFrame) error {
	roomID, err := parseRoomID(f.RoomID)
	if err != nil {
		return ErrMalformedRoomID
	}

	ok, err := d.roomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: room %d", ErrRoomNotFound, roomID)
	}

	d.reg.Join(c, roomID)
	c.Send(encode(roomAckFrame{Type: TypeJoinedRoom, RoomID: roomID}))
	return nil
}

// leaveRoom needs no existence check: leaving a room never joined, or a
// room that does not exist, is harmless.
func (d *Dispatcher) leaveRoom(c Client, f inboundFrame) error {
	roomID, err := parseRoomID(f.RoomID)
	if err != nil {
		return ErrMalformedRoomID
	}
	d.reg.Leave(c, roomID)
	c.Send(encode(roomAckFrame{Type: TypeLeftRoom, RoomID: roomID}))
	return nil
}

func (d *Dispatcher) chat(ctx context.Context, c Client, f inboundFrame) error {
	body := strings.TrimSpace(f.Message)
	if body == "" {
		return ErrEmptyMessage
	}

	roomID, err := parseRoomID(f.RoomID)
	if err != nil {
		return ErrMalformedRoomID
	}

	ok, err := d.roomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: room %d", ErrRoomNotFound, roomID)
	}

	if !d.reg.Joined(c, roomID) {
		return ErrNotJoined
	}

	// Persist and fan out under the room's ordering lock: a chat that
	// persisted later must never reach members first.
	lock := d.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	chatID, err := d.store.SaveChat(sctx, roomID, c.UserID(), body)
	cancel()
	if err != nil {
		d.log.Error("chat.persist", "connId", c.ID(), "roomId", roomID, "err", err)
		return ErrStoreUnavailable
	}

	d.bcast.Broadcast(roomID, encode(chatFrame{
		Type:      TypeChat,
		ChatID:    chatID,
		Message:   body,
		RoomID:    roomID,
		UserID:    c.UserID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
	return nil
}

func (d *Dispatcher) roomExists(ctx context.Context, roomID int64) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	ok, err := d.store.RoomExists(sctx, roomID)
	if err != nil {
		d.log.Error("room.lookup", "roomId", roomID, "err", err)
		return false, ErrStoreUnavailable
	}
	return ok, nil
}

func (d *Dispatcher) sendErr(c Client, err error) {
	c.Send(encode(errorFrame{Type: TypeError, Message: err.Error()}))
}

// frameLabel keeps the metrics label set bounded for hostile inputs.
func frameLabel(t string) string {
	switch t {
	case TypeJoinRoom, TypeLeaveRoom, TypeChat:
		return t
	}
	return "unknown"
}
