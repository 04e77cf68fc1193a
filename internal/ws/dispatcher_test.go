package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedChat struct {
	roomID int64
	userID string
	body   string
}

type fakeStore struct {
	mu     sync.Mutex
	rooms  map[int64]bool
	err    error // returned by both operations when set
	nextID int64
	saved  []savedChat
}

func newFakeStore(rooms ...int64) *fakeStore {
	s := &fakeStore{rooms: map[int64]bool{}, nextID: 1}
	for _, r := range rooms {
		s.rooms[r] = true
	}
	return s
}

func (s *fakeStore) RoomExists(_ context.Context, roomID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.rooms[roomID], nil
}

func (s *fakeStore) SaveChat(_ context.Context, roomID int64, userID, body string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, savedChat{roomID: roomID, userID: userID, body: body})
	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *fakeStore) savedChats() []savedChat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]savedChat, len(s.saved))
	copy(out, s.saved)
	return out
}

func newTestDispatcher(store RoomStore) (*Dispatcher, *Registry) {
	log := testLogger()
	reg := NewRegistry(log)
	return NewDispatcher(log, reg, store, NewBroadcaster(log, reg)), reg
}

// decodeFrames unmarshals every frame a fake client received into maps.
func decodeFrames(t *testing.T, c *fakeClient) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, raw := range c.sent() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

// lastError returns the message of the last error frame sent to c.
func lastError(t *testing.T, c *fakeClient) string {
	t.Helper()
	frames := decodeFrames(t, c)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	require.Equal(t, "error", last["type"])
	return last["message"].(string)
}

func TestDispatch_JoinRoom(t *testing.T) {
	d, reg := newTestDispatcher(newFakeStore(5))
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	d.Dispatch(context.Background(), c, []byte(`{"type":"join_room","roomId":5}`))

	frames := decodeFrames(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, "joined_room", frames[0]["type"])
	assert.EqualValues(t, 5, frames[0]["roomId"])
	assert.True(t, reg.Joined(c, 5))
}

func TestDispatch_JoinRoomStringID(t *testing.T) {
	d, reg := newTestDispatcher(newFakeStore(7))
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	d.Dispatch(context.Background(), c, []byte(`{"type":"join_room","roomId":"7"}`))

	assert.True(t, reg.Joined(c, 7))
}

func TestDispatch_JoinRoomTwice(t *testing.T) {
	d, reg := newTestDispatcher(newFakeStore(5))
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	d.Dispatch(context.Background(), c, []byte(`{"type":"join_room","roomId":5}`))
	d.Dispatch(context.Background(), c, []byte(`{"type":"join_room","roomId":5}`))

	// Same success response both times, one membership.
	frames := decodeFrames(t, c)
	require.Len(t, frames, 2)
	assert.Equal(t, frames[0], frames[1])
	assert.Len(t, reg.MembersOf(5), 1)
}

func TestDispatch_JoinRoomValidation(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr string
	}{
		{"non-numeric id", `{"type":"join_room","roomId":"abc"}`, "invalid room id"},
		{"negative id", `{"type":"join_room","roomId":-3}`, "invalid room id"},
		{"missing id", `{"type":"join_room"}`, "invalid room id"},
		{"unknown room", `{"type":"join_room","roomId":999999}`, "room not found: room 999999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reg := newTestDispatcher(newFakeStore(5))
			c := &fakeClient{id: "c1", userID: "1"}
			reg.Register(c)

			d.Dispatch(context.Background(), c, []byte(tt.frame))

			assert.Equal(t, tt.wantErr, lastError(t, c))
			_, rooms := reg.Stats()
			assert.Zero(t, rooms, "failed join must not mutate the registry")
		})
	}
}

func TestDispatch_LeaveRoom(t *testing.T) {
	d, reg := newTestDispatcher(newFakeStore(5))
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)
	reg.Join(c, 5)

	d.Dispatch(context.Background(), c, []byte(`{"type":"leave_room","roomId":5}`))

	frames := decodeFrames(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, "left_room", frames[0]["type"])
	assert.False(t, reg.Joined(c, 5))

	// Leaving again, or leaving a room never joined, still acks.
	d.Dispatch(context.Background(), c, []byte(`{"type":"leave_room","roomId":5}`))
	d.Dispatch(context.Background(), c, []byte(`{"type":"leave_room","roomId":42}`))
	assert.Len(t, decodeFrames(t, c), 3)
}

func TestDispatch_ChatFanout(t *testing.T) {
	store := newFakeStore(5)
	d, reg := newTestDispatcher(store)
	a := &fakeClient{id: "a", userID: "10"}
	b := &fakeClient{id: "b", userID: "20"}
	reg.Register(a)
	reg.Register(b)
	reg.Join(a, 5)
	reg.Join(b, 5)

	d.Dispatch(context.Background(), a, []byte(`{"type":"chat","roomId":5,"message":"hello"}`))

	for _, c := range []*fakeClient{a, b} {
		frames := decodeFrames(t, c)
		require.Len(t, frames, 1, "client %s", c.ID())
		f := frames[0]
		assert.Equal(t, "chat", f["type"])
		assert.Equal(t, "hello", f["message"])
		assert.EqualValues(t, 5, f["roomId"])
		assert.Equal(t, "10", f["userId"])
		assert.EqualValues(t, 1, f["chatId"])
		assert.NotEmpty(t, f["timestamp"])
	}

	saved := store.savedChats()
	require.Len(t, saved, 1)
	assert.Equal(t, savedChat{roomID: 5, userID: "10", body: "hello"}, saved[0])
}

func TestDispatch_ChatTrimsBody(t *testing.T) {
	store := newFakeStore(5)
	d, reg := newTestDispatcher(store)
	a := &fakeClient{id: "a", userID: "10"}
	reg.Register(a)
	reg.Join(a, 5)

	d.Dispatch(context.Background(), a, []byte(`{"type":"chat","roomId":5,"message":"  hi  "}`))

	require.Len(t, store.savedChats(), 1)
	assert.Equal(t, "hi", store.savedChats()[0].body)
}

func TestDispatch_ChatValidation(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr string
	}{
		{"whitespace only", `{"type":"chat","roomId":5,"message":"   "}`, "empty message"},
		{"empty message", `{"type":"chat","roomId":5,"message":""}`, "empty message"},
		{"bad room id", `{"type":"chat","roomId":"abc","message":"hi"}`, "invalid room id"},
		{"unknown room", `{"type":"chat","roomId":77,"message":"hi"}`, "room not found: room 77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(5)
			d, reg := newTestDispatcher(store)
			c := &fakeClient{id: "c1", userID: "1"}
			reg.Register(c)

			d.Dispatch(context.Background(), c, []byte(tt.frame))

			assert.Equal(t, tt.wantErr, lastError(t, c))
			assert.Empty(t, store.savedChats(), "failed chat must not persist")
		})
	}
}

func TestDispatch_ChatRequiresJoin(t *testing.T) {
	store := newFakeStore(5)
	d, reg := newTestDispatcher(store)
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	// Never joined.
	d.Dispatch(context.Background(), c, []byte(`{"type":"chat","roomId":5,"message":"hi"}`))
	assert.Equal(t, "join the room first", lastError(t, c))

	// Joined then left.
	d.Dispatch(context.Background(), c, []byte(`{"type":"join_room","roomId":5}`))
	d.Dispatch(context.Background(), c, []byte(`{"type":"leave_room","roomId":5}`))
	d.Dispatch(context.Background(), c, []byte(`{"type":"chat","roomId":5,"message":"hi"}`))
	assert.Equal(t, "join the room first", lastError(t, c))

	assert.Empty(t, store.savedChats())
}

func TestDispatch_ChatNotDeliveredAfterDisconnect(t *testing.T) {
	store := newFakeStore(5)
	d, reg := newTestDispatcher(store)
	a := &fakeClient{id: "a", userID: "10"}
	b := &fakeClient{id: "b", userID: "20"}
	reg.Register(a)
	reg.Register(b)
	reg.Join(a, 5)
	reg.Join(b, 5)

	reg.Deregister(b)
	d.Dispatch(context.Background(), a, []byte(`{"type":"chat","roomId":5,"message":"hi"}`))

	assert.Len(t, decodeFrames(t, a), 1)
	assert.Empty(t, b.sent(), "deregistered connection must not receive broadcasts")
}

// Concurrent chats in one room must reach members in the order their
// persisted writes completed: the store's id sequence is the canonical
// history order, and delivery may never invert it.
func TestDispatch_ChatDeliveryFollowsPersistOrder(t *testing.T) {
	store := newFakeStore(5)
	d, reg := newTestDispatcher(store)

	observer := &fakeClient{id: "obs", userID: "99"}
	reg.Register(observer)
	reg.Join(observer, 5)

	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		c := &fakeClient{id: fmt.Sprintf("s%d", i), userID: strconv.Itoa(i + 1)}
		reg.Register(c)
		reg.Join(c, 5)
		wg.Add(1)
		go func(c *fakeClient) {
			defer wg.Done()
			d.Dispatch(context.Background(), c, []byte(`{"type":"chat","roomId":5,"message":"hi"}`))
		}(c)
	}
	wg.Wait()

	frames := decodeFrames(t, observer)
	require.Len(t, frames, senders)
	ids := make([]int64, 0, senders)
	for _, f := range frames {
		ids = append(ids, int64(f["chatId"].(float64)))
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i], "delivered out of persist order: %v", ids)
	}
}

func TestDispatch_StoreFailure(t *testing.T) {
	store := newFakeStore(5)
	store.err = errors.New("connection refused")
	d, reg := newTestDispatcher(store)
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	d.Dispatch(context.Background(), c, []byte(`{"type":"join_room","roomId":5}`))

	assert.Equal(t, "store unavailable, try again", lastError(t, c))
	assert.False(t, reg.Joined(c, 5))
}

func TestDispatch_UnknownTypeIgnored(t *testing.T) {
	d, reg := newTestDispatcher(newFakeStore())
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	d.Dispatch(context.Background(), c, []byte(`{"type":"dance","roomId":5}`))

	assert.Empty(t, c.sent())
}

func TestDispatch_MalformedFrame(t *testing.T) {
	d, reg := newTestDispatcher(newFakeStore())
	c := &fakeClient{id: "c1", userID: "1"}
	reg.Register(c)

	// Valid JSON of the wrong shape gets an error frame back.
	d.Dispatch(context.Background(), c, []byte(`[1,2,3]`))
	assert.Equal(t, "malformed frame", lastError(t, c))

	// Bytes that are not JSON at all are logged server-side only.
	d.Dispatch(context.Background(), c, []byte(`{not json`))
	assert.Len(t, c.sent(), 1)
}
