package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesslink/relay-backend/internal/apperror"
	"github.com/chesslink/relay-backend/internal/entity"
	"github.com/chesslink/relay-backend/internal/repository"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewCoordinator(logger, repository.NewMemoryRoomStore(), repository.NewSessionRegistry())
}

func TestCoordinator_CreateRoom(t *testing.T) {
	ctx := context.Background()
	coordinator := newTestCoordinator(t)

	// When: a room is created
	room, err := coordinator.CreateRoom(ctx)

	// Then: it is fetchable by id at the starting position with no seats
	require.NoError(t, err)
	require.NotEmpty(t, room.ID)

	got, err := coordinator.RoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StartingFEN, got.Snapshot.FEN)
	assert.Equal(t, entity.TurnWhite, got.Snapshot.Turn)
	assert.Empty(t, got.Seats)
}

func TestCoordinator_RoomByID_NotFound(t *testing.T) {
	ctx := context.Background()
	coordinator := newTestCoordinator(t)

	_, err := coordinator.RoomByID(ctx, "nope")

	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestCoordinator_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("first joiner gets white, second black", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		// When: Alice joins first
		alice, err := coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)

		// Then: she is white and the game cannot start yet
		assert.Equal(t, entity.ColorWhite, alice.Participant.Color)
		assert.Equal(t, "Alice", alice.Participant.Name)
		assert.True(t, alice.Participant.Connected)
		assert.False(t, alice.CanStart)
		assert.False(t, alice.Rejoined)

		// When: Bob joins second
		bob, err := coordinator.JoinRoom(ctx, room.ID, "conn-bob", "Bob", "")
		require.NoError(t, err)

		// Then: he is black and the game can start
		assert.Equal(t, entity.ColorBlack, bob.Participant.Color)
		assert.True(t, bob.CanStart)
		assert.Len(t, bob.Room.Seats, 2)
	})

	t.Run("missing name gets a placeholder", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		first, err := coordinator.JoinRoom(ctx, room.ID, "conn-1", "", "")
		require.NoError(t, err)
		second, err := coordinator.JoinRoom(ctx, room.ID, "conn-2", "", "")
		require.NoError(t, err)

		assert.Equal(t, "Player 1", first.Participant.Name)
		assert.Equal(t, "Player 2", second.Participant.Name)
	})

	t.Run("unknown room", func(t *testing.T) {
		coordinator := newTestCoordinator(t)

		_, err := coordinator.JoinRoom(ctx, "nope", "conn-1", "Alice", "")

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("third distinct identity is rejected", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-1", "Alice", "")
		require.NoError(t, err)
		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-2", "Bob", "")
		require.NoError(t, err)

		// When: a third identity tries to join
		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-3", "Carol", "")

		// Then: Room-Full, and the seats are unchanged
		require.ErrorIs(t, err, apperror.ErrRoomFull)

		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, got.Seats, 2)
		assert.Equal(t, "Alice", got.Seats[0].Name)
		assert.Equal(t, "Bob", got.Seats[1].Name)
	})
}

func TestCoordinator_JoinRoom_ConcurrentAdmits(t *testing.T) {
	ctx := context.Background()
	coordinator := newTestCoordinator(t)

	room, err := coordinator.CreateRoom(ctx)
	require.NoError(t, err)

	// When: many distinct connections race to join the same room
	const joiners = 20

	var wg sync.WaitGroup
	results := make([]error, joiners)

	wg.Add(joiners)
	for i := 0; i < joiners; i++ {
		go func(n int) {
			defer wg.Done()
			_, results[n] = coordinator.JoinRoom(ctx, room.ID, fmt.Sprintf("conn-%d", n), "", "")
		}(i)
	}
	wg.Wait()

	// Then: exactly two admits succeed and the seat cap holds
	var admitted int
	for _, err := range results {
		if err == nil {
			admitted++
		} else {
			require.ErrorIs(t, err, apperror.ErrRoomFull)
		}
	}
	assert.Equal(t, 2, admitted)

	got, err := coordinator.RoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, got.Seats, 2)
	assert.Equal(t, entity.ColorWhite, got.Seats[0].Color)
	assert.Equal(t, entity.ColorBlack, got.Seats[1].Color)
}

func TestCoordinator_ReportMove(t *testing.T) {
	ctx := context.Background()
	move := json.RawMessage(`{"from":"e2","to":"e4"}`)

	t.Run("relays the move and flips the turn", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)
		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-bob", "Bob", "")
		require.NoError(t, err)

		// When: Alice reports a move
		result, err := coordinator.ReportMove(ctx, room.ID, "conn-alice", move, "fen after e4", []string{"e4"})

		// Then: the snapshot is overwritten verbatim and the mover flips
		require.NoError(t, err)
		assert.Equal(t, "fen after e4", result.FEN)
		assert.Equal(t, []string{"e4"}, result.MoveLog)
		assert.Equal(t, entity.TurnBlack, result.Turn)
		assert.Equal(t, "Alice", result.ActorName)
		assert.Equal(t, entity.ColorWhite, result.ActorColor)

		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, "fen after e4", got.Snapshot.FEN)
	})

	t.Run("mover strictly alternates", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)
		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-bob", "Bob", "")
		require.NoError(t, err)

		previous := entity.TurnWhite
		connections := []string{"conn-alice", "conn-bob", "conn-alice", "conn-bob"}

		for i, conn := range connections {
			result, err := coordinator.ReportMove(ctx, room.ID, conn, move, "fen", nil)
			require.NoError(t, err)
			assert.NotEqual(t, previous, result.Turn, "move %d must flip the mover", i)
			previous = result.Turn
		}
	})

	t.Run("unbound connection", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		// When: a connection that never joined reports a move
		_, err = coordinator.ReportMove(ctx, room.ID, "conn-stranger", move, "fen", nil)

		// Then: Invalid-Session, and the snapshot is untouched
		require.ErrorIs(t, err, apperror.ErrInvalidSession)

		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StartingFEN, got.Snapshot.FEN)
		assert.Equal(t, entity.TurnWhite, got.Snapshot.Turn)
	})

	t.Run("session bound to a different room", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		roomA, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)
		roomB, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, roomA.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)

		_, err = coordinator.ReportMove(ctx, roomB.ID, "conn-alice", move, "fen", nil)

		require.ErrorIs(t, err, apperror.ErrInvalidSession)
	})

	t.Run("stale connection no longer seated", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		joined, err := coordinator.JoinRoom(ctx, room.ID, "conn-old", "Alice", "")
		require.NoError(t, err)

		// Alice reconnects on a new connection; the old session binding
		// still exists but the seat now belongs to the new connection.
		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-new", "Alice", joined.Participant.Identity)
		require.NoError(t, err)

		_, err = coordinator.ReportMove(ctx, room.ID, "conn-old", move, "fen", nil)

		require.ErrorIs(t, err, apperror.ErrParticipantNotFound)
	})

	t.Run("move after terminal is rejected", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)
		_, err = coordinator.ReportTerminal(ctx, room.ID, "conn-alice", entity.ColorWhite, "checkmate")
		require.NoError(t, err)

		_, err = coordinator.ReportMove(ctx, room.ID, "conn-alice", move, "fen", nil)

		require.ErrorIs(t, err, apperror.ErrGameOver)
	})
}

func TestCoordinator_ReportTerminal(t *testing.T) {
	ctx := context.Background()

	t.Run("records the outcome", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)

		result, err := coordinator.ReportTerminal(ctx, room.ID, "conn-alice", entity.ColorWhite, "checkmate")

		require.NoError(t, err)
		assert.Equal(t, entity.ColorWhite, result.Winner)
		assert.Equal(t, "checkmate", result.Reason)
		assert.True(t, result.Snapshot.GameOver)

		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		assert.True(t, got.Snapshot.GameOver)
		assert.Equal(t, entity.ColorWhite, got.Snapshot.Winner)
	})

	t.Run("second terminal report is rejected", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)

		_, err = coordinator.ReportTerminal(ctx, room.ID, "conn-alice", entity.ColorWhite, "checkmate")
		require.NoError(t, err)

		_, err = coordinator.ReportTerminal(ctx, room.ID, "conn-alice", entity.ColorBlack, "resignation")

		require.ErrorIs(t, err, apperror.ErrGameOver)

		// the first outcome stands
		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.ColorWhite, got.Snapshot.Winner)
	})

	t.Run("unbound connection", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.ReportTerminal(ctx, room.ID, "conn-stranger", entity.ColorWhite, "checkmate")

		require.ErrorIs(t, err, apperror.ErrInvalidSession)
	})
}

func TestCoordinator_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the seat and reports who left", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-alice", "Alice", "")
		require.NoError(t, err)

		// When: Alice's connection closes
		result, err := coordinator.Disconnect(ctx, "conn-alice")

		// Then: the room keeps her seat, marked offline
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, room.ID, result.RoomID)
		assert.Equal(t, "Alice", result.Name)
		assert.Equal(t, entity.ColorWhite, result.Color)

		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, got.Seats, 1)
		assert.False(t, got.Seats[0].Connected)
		assert.Empty(t, got.Seats[0].ConnectionID)
		assert.Equal(t, entity.ColorWhite, got.Seats[0].Color)
	})

	t.Run("unbound connection is a no-op", func(t *testing.T) {
		coordinator := newTestCoordinator(t)

		result, err := coordinator.Disconnect(ctx, "conn-ghost")

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("stale disconnect after reconnect changes nothing", func(t *testing.T) {
		coordinator := newTestCoordinator(t)
		room, err := coordinator.CreateRoom(ctx)
		require.NoError(t, err)

		joined, err := coordinator.JoinRoom(ctx, room.ID, "conn-old", "Alice", "")
		require.NoError(t, err)

		_, err = coordinator.JoinRoom(ctx, room.ID, "conn-new", "Alice", joined.Participant.Identity)
		require.NoError(t, err)

		// When: the transport finally notices the old connection died
		result, err := coordinator.Disconnect(ctx, "conn-old")

		// Then: the seat stays live on the new connection
		require.NoError(t, err)
		assert.Nil(t, result)

		got, err := coordinator.RoomByID(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, got.Seats, 1)
		assert.True(t, got.Seats[0].Connected)
	})
}

// The end-to-end scenario: create, join, move, disconnect, rejoin.
func TestCoordinator_ReconnectScenario(t *testing.T) {
	ctx := context.Background()
	coordinator := newTestCoordinator(t)

	room, err := coordinator.CreateRoom(ctx)
	require.NoError(t, err)

	alice, err := coordinator.JoinRoom(ctx, room.ID, "conn-alice-1", "Alice", "")
	require.NoError(t, err)
	assert.Equal(t, entity.ColorWhite, alice.Participant.Color)
	assert.False(t, alice.CanStart)

	bob, err := coordinator.JoinRoom(ctx, room.ID, "conn-bob", "Bob", "")
	require.NoError(t, err)
	assert.Equal(t, entity.ColorBlack, bob.Participant.Color)
	assert.True(t, bob.CanStart)

	moveResult, err := coordinator.ReportMove(ctx, room.ID, "conn-alice-1", json.RawMessage(`"e2e4"`), "fen after e4", []string{"e2e4"})
	require.NoError(t, err)
	assert.Equal(t, entity.TurnBlack, moveResult.Turn)

	disconnect, err := coordinator.Disconnect(ctx, "conn-alice-1")
	require.NoError(t, err)
	require.NotNil(t, disconnect)
	assert.Equal(t, "Alice", disconnect.Name)

	// When: Alice rejoins on a fresh connection with her identity
	rejoined, err := coordinator.JoinRoom(ctx, room.ID, "conn-alice-2", "Alice", alice.Participant.Identity)
	require.NoError(t, err)

	// Then: same seat, same color, connected again, still two seats
	assert.True(t, rejoined.Rejoined)
	assert.Equal(t, alice.Participant.Identity, rejoined.Participant.Identity)
	assert.Equal(t, entity.ColorWhite, rejoined.Participant.Color)
	assert.True(t, rejoined.Participant.Connected)
	assert.Len(t, rejoined.Room.Seats, 2)
	assert.True(t, rejoined.CanStart)

	// and the game picks up where it left off
	assert.Equal(t, "fen after e4", rejoined.Room.Snapshot.FEN)
	assert.Equal(t, entity.TurnBlack, rejoined.Room.Snapshot.Turn)
}
