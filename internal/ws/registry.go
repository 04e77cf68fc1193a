package ws

import (
	"sync"

	"log/slog"
)

// Client is one live authenticated connection as the registry and the
// broadcast engine see it. *Conn implements it; tests substitute mocks.
type Client interface {
	ID() string
	UserID() string
	// Send enqueues an outbound frame, best effort. It reports whether
	// the frame was accepted; it never blocks.
	Send(data []byte) bool
}

// Registry owns connection membership: which connections are live and
// which rooms each one has joined. A single mutex guards both the
// per-connection room sets and the room index so the two views can
// never diverge.
type Registry struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[Client]map[int64]struct{} // connection -> joined room ids
	index map[int64]map[Client]struct{} // room id -> joined connections
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		conns: map[Client]map[int64]struct{}{},
		index: map[int64]map[Client]struct{}{},
	}
}

// Register inserts a connection with no room memberships. Registering
// the same connection twice is an invariant breach; it is logged and
// the duplicate is ignored.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; ok {
		r.log.Error("registry.duplicate", "connId", c.ID(), "userId", c.UserID())
		return
	}
	r.conns[c] = map[int64]struct{}{}
}

// Join adds the connection to a room, idempotently. A join for a
// connection that was already deregistered is a no-op so a concurrent
// teardown can never leave a dangling broadcast target.
func (r *Registry) Join(c Client, roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.conns[c]
	if !ok {
		return
	}
	rooms[roomID] = struct{}{}
	members := r.index[roomID]
	if members == nil {
		members = map[Client]struct{}{}
		r.index[roomID] = members
	}
	members[c] = struct{}{}
}

// Leave removes the connection from a room in both directions. Leaving
// a room never joined is a no-op.
func (r *Registry) Leave(c Client, roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.conns[c]
	if !ok {
		return
	}
	delete(rooms, roomID)
	r.dropMember(c, roomID)
}

// Joined reports whether the connection is currently a member of the room.
func (r *Registry) Joined(c Client, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[c][roomID]
	return ok
}

// MembersOf returns a snapshot of the connections joined to a room,
// reflecting every mutation that completed before the call.
func (r *Registry) MembersOf(roomID int64) []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.index[roomID]
	out := make([]Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Deregister removes the connection and all of its room memberships.
// Safe to call more than once; later calls are no-ops.
func (r *Registry) Deregister(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.conns[c]
	if !ok {
		return
	}
	for roomID := range rooms {
		r.dropMember(c, roomID)
	}
	delete(r.conns, c)
}

// Stats returns the number of live connections and rooms with at least
// one member.
func (r *Registry) Stats() (conns, rooms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns), len(r.index)
}

// dropMember removes c from a room's index entry, pruning the entry
// when it empties. Caller holds r.mu.
func (r *Registry) dropMember(c Client, roomID int64) {
	members := r.index[roomID]
	delete(members, c)
	if len(members) == 0 {
		delete(r.index, roomID)
	}
}
