package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chesslink/relay-backend/internal/apperror"
	"github.com/chesslink/relay-backend/internal/entity"
)

type roomStore interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error)
}

type sessionRegistry interface {
	Bind(connectionID, roomID, identity string)
	Lookup(connectionID string) (entity.Session, bool)
	Unbind(connectionID string)
}

// JoinResult is everything the gateway needs to emit room-joined to the
// admitted connection and membership-changed to the rest of the room.
type JoinResult struct {
	Room        *entity.Room
	Participant entity.Participant
	Rejoined    bool
	CanStart    bool
}

type MoveResult struct {
	RoomID     string
	Move       json.RawMessage
	FEN        string
	MoveLog    []string
	Turn       string
	ActorName  string
	ActorColor string
}

type TerminalResult struct {
	RoomID   string
	Winner   string
	Reason   string
	Snapshot entity.Snapshot
}

type DisconnectResult struct {
	RoomID string
	Name   string
	Color  string
}

// Coordinator is the authoritative game-room coordinator: it creates
// rooms, admits at most two participants per room, relays accepted moves,
// records terminal outcomes and tracks liveness. It performs no move
// legality checking; the snapshot it relays is whatever the acting client
// reported.
type Coordinator struct {
	logger   *slog.Logger
	rooms    roomStore
	sessions sessionRegistry
}

func NewCoordinator(logger *slog.Logger, rooms roomStore, sessions sessionRegistry) *Coordinator {
	return &Coordinator{
		logger:   logger,
		rooms:    rooms,
		sessions: sessions,
	}
}

// CreateRoom creates an empty room at the starting position and returns it.
func (that *Coordinator) CreateRoom(ctx context.Context) (*entity.Room, error) {
	room := entity.NewRoom(uuid.NewString())

	if err := that.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.logger.Info("room created", "roomID", room.ID)

	return room, nil
}

func (that *Coordinator) RoomByID(ctx context.Context, id string) (*entity.Room, error) {
	room, err := that.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// JoinRoom admits a connection into a room. A participant presenting the
// identity it was assigned at first admission reclaims its old seat with
// its color intact; otherwise a free seat is taken, first seat white.
func (that *Coordinator) JoinRoom(ctx context.Context, roomID, connectionID, name, identity string) (*JoinResult, error) {
	log := that.logger.With("method", "JoinRoom", "roomID", roomID)

	var joinedIdentity string
	var rejoined bool

	room, err := that.rooms.Mutate(ctx, roomID, func(room *entity.Room) error {
		if seat := room.SeatByIdentity(identity); seat != nil {
			seat.ConnectionID = connectionID
			seat.Connected = true
			joinedIdentity = seat.Identity
			rejoined = true
			return nil
		}

		if room.IsFull() {
			return apperror.ErrRoomFull
		}

		if name == "" {
			name = entity.DefaultName(len(room.Seats))
		}

		seat := &entity.Participant{
			Identity:     uuid.NewString(),
			ConnectionID: connectionID,
			Name:         name,
			Color:        room.NextColor(),
			Connected:    true,
		}
		room.Seats = append(room.Seats, seat)
		joinedIdentity = seat.Identity

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to admit into room: %w", err)
	}

	that.sessions.Bind(connectionID, roomID, joinedIdentity)

	seat := room.SeatByIdentity(joinedIdentity)
	if seat == nil {
		return nil, apperror.ErrParticipantNotFound
	}

	log.Info("participant joined", "name", seat.Name, "color", seat.Color, "rejoined", rejoined)

	return &JoinResult{
		Room:        room,
		Participant: *seat,
		Rejoined:    rejoined,
		CanStart:    room.CanStart(),
	}, nil
}

// ReportMove applies a state-transition report from the acting
// participant: overwrite the position, flip the mover, replace the move
// log. The relay trusts the reported FEN and log outright.
func (that *Coordinator) ReportMove(ctx context.Context, roomID, connectionID string, move json.RawMessage, fen string, moveLog []string) (*MoveResult, error) {
	session, ok := that.sessions.Lookup(connectionID)
	if !ok || session.RoomID != roomID {
		return nil, apperror.ErrInvalidSession
	}

	var actor entity.Participant

	room, err := that.rooms.Mutate(ctx, roomID, func(room *entity.Room) error {
		seat := room.SeatByConnection(connectionID)
		if seat == nil {
			return apperror.ErrParticipantNotFound
		}

		if room.Snapshot.GameOver {
			return apperror.ErrGameOver
		}

		actor = *seat
		room.Snapshot.FEN = fen
		room.Snapshot.FlipTurn()
		room.Snapshot.MoveLog = moveLog

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	that.logger.Info("move applied", "roomID", roomID, "actor", actor.Name, "turn", room.Snapshot.Turn)

	return &MoveResult{
		RoomID:     roomID,
		Move:       move,
		FEN:        room.Snapshot.FEN,
		MoveLog:    room.Snapshot.MoveLog,
		Turn:       room.Snapshot.Turn,
		ActorName:  actor.Name,
		ActorColor: actor.Color,
	}, nil
}

// ReportTerminal records the game's outcome. Reports against an already
// terminal room are rejected and mutate nothing.
func (that *Coordinator) ReportTerminal(ctx context.Context, roomID, connectionID, winner, reason string) (*TerminalResult, error) {
	session, ok := that.sessions.Lookup(connectionID)
	if !ok || session.RoomID != roomID {
		return nil, apperror.ErrInvalidSession
	}

	room, err := that.rooms.Mutate(ctx, roomID, func(room *entity.Room) error {
		if room.Snapshot.GameOver {
			return apperror.ErrGameOver
		}

		room.Snapshot.GameOver = true
		room.Snapshot.Winner = winner

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record outcome: %w", err)
	}

	that.logger.Info("game ended", "roomID", roomID, "winner", winner, "reason", reason)

	return &TerminalResult{
		RoomID:   roomID,
		Winner:   winner,
		Reason:   reason,
		Snapshot: room.Snapshot,
	}, nil
}

// Disconnect marks the connection's seat as offline. The seat and its
// color are retained so the participant can reclaim them on reconnect.
// Disconnecting an unbound connection is a no-op and returns nil.
func (that *Coordinator) Disconnect(ctx context.Context, connectionID string) (*DisconnectResult, error) {
	session, ok := that.sessions.Lookup(connectionID)
	if !ok {
		return nil, nil
	}

	that.sessions.Unbind(connectionID)

	var result *DisconnectResult

	_, err := that.rooms.Mutate(ctx, session.RoomID, func(room *entity.Room) error {
		seat := room.SeatByIdentity(session.Identity)
		if seat == nil || seat.ConnectionID != connectionID {
			// Already reconnected on a newer connection; nothing to mark.
			return nil
		}

		seat.Connected = false
		seat.ConnectionID = ""

		result = &DisconnectResult{
			RoomID: room.ID,
			Name:   seat.Name,
			Color:  seat.Color,
		}

		return nil
	})
	if err != nil {
		// The room may have been swept already; the unbind still stands.
		that.logger.Debug("disconnect without live room", "connectionID", connectionID, "error", err)
		return nil, nil
	}

	if result != nil {
		that.logger.Info("participant disconnected", "roomID", result.RoomID, "name", result.Name)
	}

	return result, nil
}
