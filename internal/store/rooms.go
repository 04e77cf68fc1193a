package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrSlugTaken = errors.New("room slug already in use")

// CreateRoom inserts a room administered by adminID. A duplicate slug
// reports ErrSlugTaken.
func (p *Postgres) CreateRoom(ctx context.Context, slug string, adminID int64) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO rooms (slug, admin_id)
		VALUES ($1, $2)
		RETURNING id, slug, admin_id, created_at
	`, slug, adminID)

	var r Room
	if err := row.Scan(&r.ID, &r.Slug, &r.AdminID, &r.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Room{}, ErrSlugTaken
		}
		return Room{}, err
	}
	return r, nil
}

// GetRoomBySlug resolves a room by its slug.
func (p *Postgres) GetRoomBySlug(ctx context.Context, slug string) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, slug, admin_id, created_at
		FROM rooms
		WHERE slug = $1
	`, slug)

	var r Room
	if err := row.Scan(&r.ID, &r.Slug, &r.AdminID, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, err
	}
	return r, nil
}

// RoomExists answers the hub's join/chat existence check.
func (p *Postgres) RoomExists(ctx context.Context, roomID int64) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID,
	).Scan(&exists)
	return exists, err
}
