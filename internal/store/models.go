package store

import "time"

type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

type Room struct {
	ID        int64
	Slug      string
	AdminID   int64
	CreatedAt time.Time
}

type Chat struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
