package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chesslink/relay-backend/internal/config"
	"github.com/chesslink/relay-backend/internal/repository"
	"github.com/chesslink/relay-backend/internal/repository/storage"
	"github.com/chesslink/relay-backend/internal/usecase"
	"github.com/chesslink/relay-backend/transport/rest"
	"github.com/chesslink/relay-backend/transport/websocket"
)

var ErrUnknownStorage = errors.New("unknown storage type")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	roomStore, cleanup, err := buildRoomStore(ctx, log, conf)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := repository.NewSessionRegistry()
	coordinator := usecase.NewCoordinator(logger, roomStore, sessions)

	sweeper := usecase.NewSweeper(logger, roomStore, conf.Rooms.GetTTL(), conf.Rooms.GetSweepInterval())
	go sweeper.Run(ctx)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, logger, conf.HTTPPort, conf.PublicBaseURL, coordinator); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, coordinator)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func buildRoomStore(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.RoomStore, func(), error) {
	switch conf.Storage {
	case config.StorageMemory:
		return repository.NewMemoryRoomStore(), func() {}, nil
	case config.StorageRedis:
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		cleanup := func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}

		return repository.NewRedisRoomStore(redisStorage.Connection), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStorage, conf.Storage)
	}
}
