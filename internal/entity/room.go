package entity

import (
	"fmt"
	"time"
)

const (
	// StartingFEN is the standard chess starting position.
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

	ColorWhite = "white"
	ColorBlack = "black"

	TurnWhite = "w"
	TurnBlack = "b"

	MaxSeats = 2
)

// Snapshot is the authoritative game state the relay owns: the serialized
// position, whose turn it is, and the accumulated move log. The relay never
// inspects the FEN; legality is the client-side rules oracle's job.
type Snapshot struct {
	FEN      string   `json:"fen"`
	Turn     string   `json:"turn"`
	MoveLog  []string `json:"move_history"`
	GameOver bool     `json:"is_game_over"`
	Winner   string   `json:"winner,omitempty"`
}

type Participant struct {
	Identity     string `json:"id"`
	ConnectionID string `json:"-"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	Connected    bool   `json:"connected"`
}

// Session binds a live connection to the room and participant identity it
// currently represents. Created on admission, deleted on disconnect.
type Session struct {
	ConnectionID string
	RoomID       string
	Identity     string
}

type Room struct {
	ID        string         `json:"id"`
	Seats     []*Participant `json:"players"`
	Snapshot  Snapshot       `json:"game_state"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewRoom(id string) *Room {
	return &Room{
		ID: id,
		Snapshot: Snapshot{
			FEN:     StartingFEN,
			Turn:    TurnWhite,
			MoveLog: []string{},
		},
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy. Stores hand out clones so callers can read a
// room while another connection's mutation is in flight.
func (that *Room) Clone() *Room {
	seats := make([]*Participant, len(that.Seats))
	for i, seat := range that.Seats {
		copied := *seat
		seats[i] = &copied
	}

	snapshot := that.Snapshot
	snapshot.MoveLog = append([]string(nil), that.Snapshot.MoveLog...)

	return &Room{
		ID:        that.ID,
		Seats:     seats,
		Snapshot:  snapshot,
		CreatedAt: that.CreatedAt,
	}
}

// FlipTurn hands the move to the other side.
func (that *Snapshot) FlipTurn() {
	if that.Turn == TurnWhite {
		that.Turn = TurnBlack
	} else {
		that.Turn = TurnWhite
	}
}

func (that *Room) IsFull() bool {
	return len(that.Seats) >= MaxSeats
}

// CanStart reports whether both seats are taken.
func (that *Room) CanStart() bool {
	return len(that.Seats) == MaxSeats
}

func (that *Room) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(that.CreatedAt) > ttl
}

func (that *Room) SeatByIdentity(identity string) *Participant {
	if identity == "" {
		return nil
	}

	for _, seat := range that.Seats {
		if seat.Identity == identity {
			return seat
		}
	}

	return nil
}

func (that *Room) SeatByConnection(connectionID string) *Participant {
	for _, seat := range that.Seats {
		if seat.ConnectionID == connectionID {
			return seat
		}
	}

	return nil
}

// NextColor returns the color the next admitted seat receives: the first
// seat is always white.
func (that *Room) NextColor() string {
	if len(that.Seats) == 0 {
		return ColorWhite
	}
	return ColorBlack
}

// DefaultName is the placeholder label for a participant who joined
// without one.
func DefaultName(seatCount int) string {
	return fmt.Sprintf("Player %d", seatCount+1)
}
