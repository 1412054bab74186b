package repository

import (
	"context"
	"sync"
	"time"

	"github.com/chesslink/relay-backend/internal/apperror"
	"github.com/chesslink/relay-backend/internal/entity"
)

// RoomStore holds every live room. Mutate serializes concurrent
// read-modify-write cycles on the same room id, so the move relay's
// turn-alternation bookkeeping cannot race.
type RoomStore interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error)
}

type roomEntry struct {
	mu   sync.Mutex
	room *entity.Room
}

type memoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

// NewMemoryRoomStore returns the default in-process RoomStore.
func NewMemoryRoomStore() RoomStore {
	return &memoryRoomStore{
		rooms: make(map[string]*roomEntry),
	}
}

func (that *memoryRoomStore) Create(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rooms[room.ID] = &roomEntry{room: room.Clone()}

	return nil
}

func (that *memoryRoomStore) GetByID(_ context.Context, id string) (*entity.Room, error) {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.room.Clone(), nil
}

func (that *memoryRoomStore) Mutate(_ context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error) {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// The sweep may have removed the room between the two locks.
	that.mu.RLock()
	_, ok = that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	// Work on a clone and commit only on success, so a rejected
	// operation leaves no partial mutation behind.
	working := entry.room.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	entry.room = working

	return working.Clone(), nil
}

func (that *memoryRoomStore) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, id)

	return nil
}

func (that *memoryRoomStore) ListExpired(_ context.Context, now time.Time, ttl time.Duration) ([]string, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	var expired []string

	for id, entry := range that.rooms {
		// CreatedAt is immutable after creation, no entry lock needed.
		if entry.room.IsExpired(now, ttl) {
			expired = append(expired, id)
		}
	}

	return expired, nil
}
