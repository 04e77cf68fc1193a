package store

import (
	"context"
	"strconv"
)

// SaveChat persists one chat message and returns the id the database
// assigned. The recent-chat cache is written through after the insert;
// a cache failure is logged, never surfaced, the DB row is the record.
func (p *Postgres) SaveChat(ctx context.Context, roomID int64, userID, body string) (int64, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, err
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO chats (room_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, room_id, user_id, message, created_at
	`, roomID, uid, body)

	var c Chat
	if err := row.Scan(&c.ID, &c.RoomID, &c.UserID, &c.Message, &c.CreatedAt); err != nil {
		return 0, err
	}

	if err := p.cache.Push(ctx, c); err != nil {
		p.log.Warn("chat.cache.push", "roomId", roomID, "err", err)
	}
	return c.ID, nil
}

// ListChats returns up to limit messages for a room, newest first. The
// redis cache answers when warm; otherwise postgres is queried and the
// cache refilled.
func (p *Postgres) ListChats(ctx context.Context, roomID int64, limit int) ([]Chat, error) {
	if chats, ok := p.cache.Recent(ctx, roomID, limit); ok {
		return chats, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, room_id, user_id, message, created_at
		FROM chats
		WHERE room_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.RoomID, &c.UserID, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := p.cache.Fill(ctx, roomID, out); err != nil {
		p.log.Warn("chat.cache.fill", "roomId", roomID, "err", err)
	}
	return out, nil
}
