package app

import (
	"context"
	"sync"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/repo"
	"quizroom-service/internal/sound"
)

// Hub hands out one shared RoomService per room, refcounted by attached
// clients. When the last client releases a room its remote mirror is
// torn down and the entry dropped.
type Hub struct {
	rooms *repo.RoomRepository
	cues  *sound.Service

	mu      sync.Mutex
	entries map[string]*hubEntry
}

type hubEntry struct {
	svc  *RoomService
	refs int
}

func NewHub(rooms *repo.RoomRepository, cues *sound.Service) *Hub {
	return &Hub{
		rooms:   rooms,
		cues:    cues,
		entries: make(map[string]*hubEntry),
	}
}

// CreateRoom creates a fresh room and its service. The creator holds
// one reference; once it and every attached client release, the service
// and its store watch are torn down.
func (h *Hub) CreateRoom(ctx context.Context, name string, questions []domain.Question, mode domain.RoomMode) (*RoomService, domain.Room, func()) {
	svc := NewRoomService(h.rooms, h.cues)
	room := svc.CreateRoom(ctx, name, questions, mode)

	h.mu.Lock()
	h.entries[room.ID] = &hubEntry{svc: svc, refs: 1}
	h.mu.Unlock()
	return svc, room, h.releaseFunc(room.ID)
}

// Attach resolves a join code to the room's shared service, creating and
// mirroring it on first use. The returned release must be called once
// the client disconnects.
func (h *Hub) Attach(ctx context.Context, code string) (*RoomService, func(), error) {
	svc := NewRoomService(h.rooms, h.cues)
	room, err := svc.Attach(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	entry, ok := h.entries[room.ID]
	if ok {
		// Lost the race to an existing service; discard ours.
		entry.refs++
		h.mu.Unlock()
		svc.Close()
		return entry.svc, h.releaseFunc(room.ID), nil
	}
	entry = &hubEntry{svc: svc, refs: 1}
	h.entries[room.ID] = entry
	h.mu.Unlock()
	return svc, h.releaseFunc(room.ID), nil
}

func (h *Hub) releaseFunc(roomID string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			entry, ok := h.entries[roomID]
			if !ok {
				h.mu.Unlock()
				return
			}
			entry.refs--
			if entry.refs > 0 {
				h.mu.Unlock()
				return
			}
			delete(h.entries, roomID)
			h.mu.Unlock()
			entry.svc.Close()
		})
	}
}
