package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chesslink/relay-backend/internal/apperror"
	"github.com/chesslink/relay-backend/internal/entity"
)

const roomKeyPrefix = "room:"

// roomRecord is the persistence shape of a room. The entity hides
// ConnectionID from client-facing payloads, so the store keeps its own
// record with every field serialized; otherwise seat lookups by
// connection would come back empty after a round-trip through redis.
type roomRecord struct {
	ID        string              `json:"id"`
	Seats     []participantRecord `json:"seats"`
	Snapshot  entity.Snapshot     `json:"snapshot"`
	CreatedAt time.Time           `json:"created_at"`
}

type participantRecord struct {
	Identity     string `json:"identity"`
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	Connected    bool   `json:"connected"`
}

func encodeRoom(room *entity.Room) ([]byte, error) {
	record := roomRecord{
		ID:        room.ID,
		Seats:     make([]participantRecord, len(room.Seats)),
		Snapshot:  room.Snapshot,
		CreatedAt: room.CreatedAt,
	}

	for i, seat := range room.Seats {
		record.Seats[i] = participantRecord{
			Identity:     seat.Identity,
			ConnectionID: seat.ConnectionID,
			Name:         seat.Name,
			Color:        seat.Color,
			Connected:    seat.Connected,
		}
	}

	roomJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("could not marshal room: %w", err)
	}

	return roomJSON, nil
}

func decodeRoom(data []byte) (*entity.Room, error) {
	var record roomRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	room := &entity.Room{
		ID:        record.ID,
		Seats:     make([]*entity.Participant, len(record.Seats)),
		Snapshot:  record.Snapshot,
		CreatedAt: record.CreatedAt,
	}

	for i, seat := range record.Seats {
		room.Seats[i] = &entity.Participant{
			Identity:     seat.Identity,
			ConnectionID: seat.ConnectionID,
			Name:         seat.Name,
			Color:        seat.Color,
			Connected:    seat.Connected,
		}
	}

	return room, nil
}

// redisRoomStore keeps rooms in redis so they survive a coordinator
// restart. A single coordinator process owns the store, so Mutate can
// linearize writers with in-process per-room locks, same as the memory
// store.
type redisRoomStore struct {
	client *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRedisRoomStore(client *redis.Client) RoomStore {
	return &redisRoomStore{
		client: client,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (that *redisRoomStore) roomLock(id string) *sync.Mutex {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock, ok := that.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		that.locks[id] = lock
	}

	return lock
}

func (that *redisRoomStore) dropLock(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.locks, id)
}

func (that *redisRoomStore) set(ctx context.Context, room *entity.Room) error {
	roomJSON, err := encodeRoom(room)
	if err != nil {
		return err
	}

	if err = that.client.Set(ctx, roomKeyPrefix+room.ID, roomJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (that *redisRoomStore) get(ctx context.Context, id string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKeyPrefix+id).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by ID: %w", err)
	}

	return decodeRoom([]byte(response))
}

func (that *redisRoomStore) Create(ctx context.Context, room *entity.Room) error {
	return that.set(ctx, room)
}

func (that *redisRoomStore) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	return that.get(ctx, id)
}

func (that *redisRoomStore) Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error) {
	lock := that.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := that.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = fn(room); err != nil {
		return nil, err
	}

	if err = that.set(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

func (that *redisRoomStore) DeleteByID(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, roomKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete room by ID: %w", err)
	}

	that.dropLock(id)

	return nil
}

func (that *redisRoomStore) ListExpired(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error) {
	var expired []string

	iter := that.client.Scan(ctx, 0, roomKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), roomKeyPrefix)

		room, err := that.get(ctx, id)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		if room.IsExpired(now, ttl) {
			expired = append(expired, id)
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}

	return expired, nil
}
