package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
	"log/slog"

	"github.com/iamapoorv476/my-excildrawapp/internal/app"
)

// historyCap bounds the per-room cache; history reads never exceed it.
const historyCap = 100

// RecentChats keeps the newest messages of each room in a redis list,
// newest first, so history reads skip postgres on the hot path.
type RecentChats struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewRecentChats connects to redis and verifies connectivity
func NewRecentChats(ctx context.Context, cfg app.Config, log *slog.Logger) (*RecentChats, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RecentChats{rdb: rdb, log: log}, nil
}

// Push prepends one chat to its room's list and trims to the cap.
func (r *RecentChats) Push(ctx context.Context, c Chat) error {
	raw, _ := json.Marshal(c)
	pipe := r.rdb.Pipeline()
	pipe.LPush(ctx, chatKey(c.RoomID), raw)
	pipe.LTrim(ctx, chatKey(c.RoomID), 0, historyCap-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Recent returns up to limit cached chats, newest first. ok is false
// when the cache is cold (or unreachable) and the caller should fall
// back to the database.
func (r *RecentChats) Recent(ctx context.Context, roomID int64, limit int) ([]Chat, bool) {
	if limit > historyCap {
		limit = historyCap
	}
	raw, err := r.rdb.LRange(ctx, chatKey(roomID), 0, int64(limit)-1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	out := make([]Chat, 0, len(raw))
	for _, item := range raw {
		var c Chat
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			r.log.Warn("chat.cache.decode", "roomId", roomID, "err", err)
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}

// Fill replaces a room's list with chats, which must arrive newest first.
func (r *RecentChats) Fill(ctx context.Context, roomID int64, chats []Chat) error {
	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, chatKey(roomID))
	for _, c := range chats {
		raw, _ := json.Marshal(c)
		pipe.RPush(ctx, chatKey(roomID), raw)
	}
	pipe.LTrim(ctx, chatKey(roomID), 0, historyCap-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Ping verifies redis connectivity for readiness checks.
func (r *RecentChats) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// Close shuts down the redis connection
func (r *RecentChats) Close() { _ = r.rdb.Close() }

// chatKey namespacing for per-room history lists
func chatKey(roomID int64) string { return "chats:" + strconv.FormatInt(roomID, 10) }
