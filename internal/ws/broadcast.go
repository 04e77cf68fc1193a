package ws

import (
	"log/slog"

	"github.com/iamapoorv476/my-excildrawapp/pkg/metrics"
)

// Broadcaster fans a frame out to every current member of a room.
// Delivery per member is independent and best effort: a member whose
// send buffer is full is skipped, never waited on, and one member's
// failure never blocks the rest. Chat ordering within a room is the
// dispatcher's job — it holds the room's ordering lock across
// persist+broadcast.
type Broadcaster struct {
	log *slog.Logger
	reg *Registry
}

func NewBroadcaster(log *slog.Logger, reg *Registry) *Broadcaster {
	return &Broadcaster{log: log, reg: reg}
}

// Broadcast delivers data to the members of roomID as of now. The
// sender, if still joined, receives its own frame too.
func (b *Broadcaster) Broadcast(roomID int64, data []byte) {
	metrics.BroadcastsTotal.Inc()
	for _, c := range b.reg.MembersOf(roomID) {
		if !c.Send(data) {
			metrics.SendsDropped.Inc()
			b.log.Warn("broadcast.drop", "roomId", roomID, "connId", c.ID())
		}
	}
}
