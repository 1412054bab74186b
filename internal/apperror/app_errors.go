package apperror

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrInvalidSession      = errors.New("no active room binding for connection")
	ErrParticipantNotFound = errors.New("participant not seated in room")
	ErrGameOver            = errors.New("game is already over")
)

// Reason codes carried by operation-failed events.
const (
	ReasonRoomNotFound        = "room_not_found"
	ReasonRoomFull            = "room_full"
	ReasonInvalidSession      = "invalid_session"
	ReasonParticipantNotFound = "participant_not_found"
	ReasonGameOver            = "game_over"
	ReasonInternal            = "internal_error"
)

// ReasonCode maps a coordinator error to the wire reason code clients see.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return ReasonRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return ReasonRoomFull
	case errors.Is(err, ErrInvalidSession):
		return ReasonInvalidSession
	case errors.Is(err, ErrParticipantNotFound):
		return ReasonParticipantNotFound
	case errors.Is(err, ErrGameOver):
		return ReasonGameOver
	default:
		return ReasonInternal
	}
}
