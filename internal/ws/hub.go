package ws

import (
	"net/http"
	"sync"

	"log/slog"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/iamapoorv476/my-excildrawapp/pkg/metrics"
)

// TokenVerifier is the identity collaborator: raw bearer token in, user
// id out. The hub neither knows nor cares how the token is structured.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Hub drives the lifecycle of every websocket connection: handshake,
// registration, serve loop, teardown. Registry state is the only thing
// shared between connection handlers.
type Hub struct {
	log      *slog.Logger
	verifier TokenVerifier
	reg      *Registry
	disp     *Dispatcher
}

func NewHub(log *slog.Logger, verifier TokenVerifier, store RoomStore) *Hub {
	reg := NewRegistry(log)
	bcast := NewBroadcaster(log, reg)
	return &Hub{
		log:      log,
		verifier: verifier,
		reg:      reg,
		disp:     NewDispatcher(log, reg, store, bcast),
	}
}

// Registry exposes membership state for ops endpoints.
func (h *Hub) Registry() *Registry { return h.reg }

// ServeWS handles a new /ws connection: verify the bearer token from
// the query string, register, confirm, then pump frames until the
// transport goes away. Teardown runs exactly once on every exit path.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sock, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	// Auth precedes registration. An invalid token closes the transport
	// with a policy-violation status before any frame exchange.
	userID, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		h.log.Warn("ws.auth.reject", "remote", r.RemoteAddr, "err", err)
		_ = sock.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}

	c := NewConn(uuid.New().String(), userID, sock)
	h.reg.Register(c)
	metrics.ConnectionsActive.Inc()
	h.log.Info("ws.connect", "connId", c.ID(), "userId", userID)

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			h.reg.Deregister(c)
			metrics.ConnectionsActive.Dec()
			_ = c.Close()
			h.log.Info("ws.disconnect", "connId", c.ID(), "userId", userID)
		})
	}
	defer teardown()

	go c.WriteLoop(ctx)

	c.Send(encode(connectedFrame{Type: TypeConnected, UserID: userID}))

	for {
		raw, ok := c.ReadFrame(ctx)
		if !ok {
			return
		}
		h.disp.Dispatch(ctx, c, raw)
	}
}
