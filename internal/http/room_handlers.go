package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iamapoorv476/my-excildrawapp/internal/store"
	"github.com/iamapoorv476/my-excildrawapp/pkg/auth"
)

type RoomsAPI struct{ DB *store.Postgres }

type createRoomReq struct {
	Name string `json:"name"`
}

type roomResponse struct {
	RoomID int64  `json:"roomId"`
	Slug   string `json:"slug"`
}

// Create makes a new room administered by the authenticated user.
func (a *RoomsAPI) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	slug := strings.TrimSpace(req.Name)
	if slug == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	adminID, err := strconv.ParseInt(auth.UserID(r.Context()), 10, 64)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	room, err := a.DB.CreateRoom(r.Context(), slug, adminID)
	if err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			http.Error(w, "room already exists with this name", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, roomResponse{RoomID: room.ID, Slug: room.Slug})
}

// GetBySlug resolves a room id from its slug.
func (a *RoomsAPI) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		http.Error(w, "slug required", http.StatusBadRequest)
		return
	}

	room, err := a.DB.GetRoomBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, roomResponse{RoomID: room.ID, Slug: room.Slug})
}

type chatDTO struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"roomId"`
	UserID    int64  `json:"userId"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// History returns the last 100 messages of a room, newest first.
func (a *RoomsAPI) History(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || roomID <= 0 {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	chats, err := a.DB.ListChats(r.Context(), roomID, 100)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]chatDTO, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatDTO{
			ID: c.ID, RoomID: c.RoomID, UserID: c.UserID,
			Message: c.Message, CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, map[string]any{"messages": out})
}
