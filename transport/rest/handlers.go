package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chesslink/relay-backend/internal/apperror"
)

type handler struct {
	logger        *slog.Logger
	publicBaseURL string
	coord         coordinator
}

func newHandler(logger *slog.Logger, publicBaseURL string, coord coordinator) *handler {
	return &handler{
		logger:        logger,
		publicBaseURL: publicBaseURL,
		coord:         coord,
	}
}

type createRoomResponse struct {
	RoomID   string `json:"room_id"`
	ShareURL string `json:"share_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *handler) createRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "createRoom")

	room, err := that.coord.CreateRoom(r.Context())
	if err != nil {
		log.Error("failed to create room", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create room"})
		return
	}

	writeJSON(w, http.StatusOK, createRoomResponse{
		RoomID:   room.ID,
		ShareURL: that.shareURL(r, room.ID),
	})
}

func (that *handler) getRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "getRoom")

	room, err := that.coord.RoomByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, apperror.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Room not found"})
		return
	}

	if err != nil {
		log.Error("failed to get room", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get room"})
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// shareURL derives the link a participant shares with their opponent.
func (that *handler) shareURL(r *http.Request, roomID string) string {
	base := that.publicBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	return fmt.Sprintf("%s/game/%s", base, roomID)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
