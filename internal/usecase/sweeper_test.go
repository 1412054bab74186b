package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesslink/relay-backend/internal/apperror"
	"github.com/chesslink/relay-backend/internal/entity"
	"github.com/chesslink/relay-backend/internal/repository"
)

func TestSweeper_SweepOnce(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryRoomStore()

	// Given: a fresh room, an expired room, and an expired finished room
	fresh := entity.NewRoom("fresh")

	stale := entity.NewRoom("stale")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)

	// Occupied and finished rooms are not spared; the sweep is a coarse TTL.
	staleFinished := entity.NewRoom("stale-finished")
	staleFinished.CreatedAt = time.Now().Add(-2 * time.Hour)
	staleFinished.Snapshot.GameOver = true
	staleFinished.Seats = append(staleFinished.Seats, &entity.Participant{Identity: "a", Connected: true})

	require.NoError(t, store.Create(ctx, fresh))
	require.NoError(t, store.Create(ctx, stale))
	require.NoError(t, store.Create(ctx, staleFinished))

	sweeper := NewSweeper(logger, store, time.Hour, time.Minute)

	// When: one sweep runs
	sweeper.SweepOnce(ctx, time.Now())

	// Then: only the fresh room survives
	_, err := store.GetByID(ctx, "fresh")
	require.NoError(t, err)

	_, err = store.GetByID(ctx, "stale")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)

	_, err = store.GetByID(ctx, "stale-finished")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryRoomStore()

	sweeper := NewSweeper(logger, store, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		assert.Fail(t, "sweeper did not stop after context cancellation")
	}
}
