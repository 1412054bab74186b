package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chesslink/relay-backend/internal/usecase"
)

type coordinator interface {
	JoinRoom(ctx context.Context, roomID, connectionID, name, identity string) (*usecase.JoinResult, error)
	ReportMove(ctx context.Context, roomID, connectionID string, move json.RawMessage, fen string, moveLog []string) (*usecase.MoveResult, error)
	ReportTerminal(ctx context.Context, roomID, connectionID, winner, reason string) (*usecase.TerminalResult, error)
	Disconnect(ctx context.Context, connectionID string) (*usecase.DisconnectResult, error)
}

// Server is the connection gateway: it upgrades connections, reads
// inbound events, dispatches them to the coordinator and fans the
// results out through the hub.
type Server struct {
	logger *slog.Logger
	coord  coordinator
	hub    *Hub

	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, client *Client, message *Message) error

	// dispatch serializes applying an operation and enqueueing its
	// fan-out per room, so a recipient observes a room's events in the
	// order they were applied. One lock per room id, created on first
	// use.
	dispatchMu sync.Mutex
	dispatch   map[string]*sync.Mutex
}

func New(logger *slog.Logger, coord coordinator) *Server {
	server := &Server{
		logger: logger,
		coord:  coord,
		hub:    NewHub(logger),

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The share link may be opened from any origin; access
			// control is the room id itself.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *Client, *Message) error),
		dispatch: make(map[string]*sync.Mutex),
	}

	server.handlers[ActionJoinRoom] = server.handleJoinRoom
	server.handlers[ActionReportMove] = server.handleReportMove
	server.handlers[ActionReportTerminal] = server.handleReportTerminal

	return server
}

func (that *Server) roomDispatch(roomID string) *sync.Mutex {
	that.dispatchMu.Lock()
	defer that.dispatchMu.Unlock()

	lock, ok := that.dispatch[roomID]
	if !ok {
		lock = &sync.Mutex{}
		that.dispatch[roomID] = lock
	}

	return lock
}

// ServeHTTP - upgrades an incoming request and services the connection
// until it drops.
func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	that.handleConnection(w, r)
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", that)

	// No read/idle timeouts: a game connection can sit quiet for minutes.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
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

// handleConnection - upgrades the connection and runs its read loop.
func (that *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	// Outlives r.Context so the disconnect bookkeeping still runs after
	// the peer goes away.
	ctx := context.Background()

	client := newClient(uuid.NewString(), conn)
	that.hub.Register(client)
	go client.writePump(that.logger)

	log.Info("WebSocket connection established", "connectionID", client.ID)

	that.readMessages(ctx, client)

	// The read loop only returns when the connection is gone.
	that.handleDisconnect(ctx, client)
}

// readMessages - processes messages from the client until the connection
// drops.
func (that *Server) readMessages(ctx context.Context, client *Client) {
	log := that.logger.With("method", "readMessages", "connectionID", client.ID)

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			log.Debug("connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, client, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// handleDisconnect - marks the seat offline, tells the rest of the room,
// and releases the connection's hub and registry state.
func (that *Server) handleDisconnect(ctx context.Context, client *Client) {
	log := that.logger.With("method", "handleDisconnect")

	// The disconnect broadcast rides the same per-room serialization as
	// the handlers, so it cannot overtake an in-flight move's fan-out.
	if roomID, ok := that.hub.RoomOf(client.ID); ok {
		lock := that.roomDispatch(roomID)
		lock.Lock()
		defer lock.Unlock()
	}

	result, err := that.coord.Disconnect(ctx, client.ID)
	if err != nil {
		log.Error("failed to handle disconnect", "connectionID", client.ID, "error", err)
	}

	if result != nil {
		payload := ParticipantDisconnectedPayload{
			Name:  result.Name,
			Color: result.Color,
		}
		if err = that.hub.Broadcast(result.RoomID, client.ID, ActionParticipantDisconnected, payload); err != nil {
			log.Error("failed to broadcast disconnect", "error", err)
		}
	}

	that.hub.Unregister(client.ID)

	log.Info("player disconnected", "connectionID", client.ID)
}
