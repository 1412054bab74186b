package websocket

import (
	"encoding/json"

	"github.com/chesslink/relay-backend/internal/entity"
)

// Inbound actions.
const (
	ActionJoinRoom       = "join-room"
	ActionReportMove     = "report-move"
	ActionReportTerminal = "report-terminal"
)

// Outbound actions.
const (
	ActionRoomJoined              = "room-joined"
	ActionMembershipChanged       = "membership-changed"
	ActionMoveApplied             = "move-applied"
	ActionGameEnded               = "game-ended"
	ActionParticipantDisconnected = "participant-disconnected"
	ActionOperationFailed         = "operation-failed"
)

// Message is the wire envelope: an action name and an action-specific
// payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"room_id"`
	Name     string `json:"name,omitempty"`
	Identity string `json:"identity,omitempty"`
}

type ReportMovePayload struct {
	RoomID  string          `json:"room_id"`
	Move    json.RawMessage `json:"move"`
	FEN     string          `json:"new_fen"`
	MoveLog []string        `json:"move_history"`
}

type ReportTerminalPayload struct {
	RoomID string `json:"room_id"`
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

type RoomJoinedPayload struct {
	// Participant.Identity is the credential a client presents to reclaim
	// its seat on rejoin.
	Room        *entity.Room       `json:"room"`
	Participant entity.Participant `json:"player"`
	CanStart    bool               `json:"can_start"`
}

type MembershipChangedPayload struct {
	Participant  entity.Participant `json:"player"`
	PlayersCount int                `json:"players_count"`
	CanStart     bool               `json:"can_start"`
}

type MoveAppliedPayload struct {
	Move       json.RawMessage `json:"move"`
	FEN        string          `json:"new_fen"`
	MoveLog    []string        `json:"move_history"`
	Turn       string          `json:"turn"`
	ActorName  string          `json:"player_name"`
	ActorColor string          `json:"player_color"`
}

type GameEndedPayload struct {
	Winner   string          `json:"winner"`
	Reason   string          `json:"reason"`
	Snapshot entity.Snapshot `json:"game_state"`
}

type ParticipantDisconnectedPayload struct {
	Name  string `json:"player_name"`
	Color string `json:"player_color"`
}

type OperationFailedPayload struct {
	Reason string `json:"reason"`
}
