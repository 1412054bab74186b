package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chesslink/relay-backend/internal/apperror"
)

func (that *Server) handleJoinRoom(ctx context.Context, client *Client, msg *Message) error {
	log := that.logger.With("method", "handleJoinRoom", "connectionID", client.ID)

	var payload JoinRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	lock := that.roomDispatch(payload.RoomID)
	lock.Lock()
	defer lock.Unlock()

	result, err := that.coord.JoinRoom(ctx, payload.RoomID, client.ID, payload.Name, payload.Identity)
	if err != nil {
		log.Error("failed to join room", "roomID", payload.RoomID, "error", err)
		return that.sendFailure(client, err)
	}

	// Membership is established before the joined event goes out, so every
	// later broadcast for this room reaches the new member.
	that.hub.Join(result.Room.ID, client.ID)

	joined := RoomJoinedPayload{
		Room:        result.Room,
		Participant: result.Participant,
		CanStart:    result.CanStart,
	}
	if err = that.hub.SendTo(client.ID, ActionRoomJoined, joined); err != nil {
		return fmt.Errorf("failed to send room-joined: %w", err)
	}

	changed := MembershipChangedPayload{
		Participant:  result.Participant,
		PlayersCount: len(result.Room.Seats),
		CanStart:     result.CanStart,
	}
	if err = that.hub.Broadcast(result.Room.ID, client.ID, ActionMembershipChanged, changed); err != nil {
		return fmt.Errorf("failed to broadcast membership-changed: %w", err)
	}

	log.Info("participant joined room", "roomID", result.Room.ID, "color", result.Participant.Color, "rejoined", result.Rejoined)

	return nil
}

func (that *Server) handleReportMove(ctx context.Context, client *Client, msg *Message) error {
	log := that.logger.With("method", "handleReportMove", "connectionID", client.ID)

	var payload ReportMovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	// Applying the move and enqueueing its broadcast happen under the
	// room's dispatch lock: two accepted moves fan out in the order they
	// were applied.
	lock := that.roomDispatch(payload.RoomID)
	lock.Lock()
	defer lock.Unlock()

	result, err := that.coord.ReportMove(ctx, payload.RoomID, client.ID, payload.Move, payload.FEN, payload.MoveLog)
	if err != nil {
		log.Error("failed to apply move", "roomID", payload.RoomID, "error", err)
		return that.sendFailure(client, err)
	}

	applied := MoveAppliedPayload{
		Move:       result.Move,
		FEN:        result.FEN,
		MoveLog:    result.MoveLog,
		Turn:       result.Turn,
		ActorName:  result.ActorName,
		ActorColor: result.ActorColor,
	}

	// The sender receives the broadcast too, for idempotent client
	// reconciliation.
	if err = that.hub.Broadcast(result.RoomID, "", ActionMoveApplied, applied); err != nil {
		return fmt.Errorf("failed to broadcast move-applied: %w", err)
	}

	log.Info("move relayed", "roomID", result.RoomID, "turn", result.Turn)

	return nil
}

func (that *Server) handleReportTerminal(ctx context.Context, client *Client, msg *Message) error {
	log := that.logger.With("method", "handleReportTerminal", "connectionID", client.ID)

	var payload ReportTerminalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	lock := that.roomDispatch(payload.RoomID)
	lock.Lock()
	defer lock.Unlock()

	result, err := that.coord.ReportTerminal(ctx, payload.RoomID, client.ID, payload.Winner, payload.Reason)
	if err != nil {
		log.Error("failed to record outcome", "roomID", payload.RoomID, "error", err)
		return that.sendFailure(client, err)
	}

	ended := GameEndedPayload{
		Winner:   result.Winner,
		Reason:   result.Reason,
		Snapshot: result.Snapshot,
	}
	if err = that.hub.Broadcast(result.RoomID, "", ActionGameEnded, ended); err != nil {
		return fmt.Errorf("failed to broadcast game-ended: %w", err)
	}

	log.Info("game ended", "roomID", result.RoomID, "winner", result.Winner)

	return nil
}

// sendFailure reports a failed operation back to the originating
// connection only.
func (that *Server) sendFailure(client *Client, err error) error {
	payload := OperationFailedPayload{Reason: apperror.ReasonCode(err)}

	if sendErr := that.hub.SendTo(client.ID, ActionOperationFailed, payload); sendErr != nil {
		return fmt.Errorf("failed to send error response: %w", sendErr)
	}

	return nil
}
