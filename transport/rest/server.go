package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v3"

	"github.com/chesslink/relay-backend/internal/entity"
)

type coordinator interface {
	CreateRoom(ctx context.Context) (*entity.Room, error)
	RoomByID(ctx context.Context, id string) (*entity.Room, error)
}

// NewRouter wires the request/response surface: create a room, fetch a
// room snapshot, health check.
func NewRouter(logger *slog.Logger, publicBaseURL string, coord coordinator) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
	}))

	handler := newHandler(logger, publicBaseURL, coord)

	router.Get("/ping", pingHandler)
	router.Post("/api/rooms", handler.createRoom)
	router.Get("/api/rooms/{id}", handler.getRoom)

	return router
}

// Start - serves the REST surface until ctx is cancelled.
func Start(ctx context.Context, logger *slog.Logger, port, publicBaseURL string, coord coordinator) error {
	router := NewRouter(logger, publicBaseURL, coord)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}
