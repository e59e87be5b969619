// Package rules adapts third-party chess rules engines to board.Position.
//
// Two backends are available: dragontoothmg, a fast bitboard generator with
// in-place apply/unapply, and notnil/chess, which works on immutable
// positions. Both report the same legal moves for the same position; they
// may generate them in a different order.
package rules

import (
	"fmt"
	"strings"

	"github.com/hailam/chessbot/internal/board"
)

const (
	fiftyMoveLimit  = 100 // half-moves
	repetitionLimit = 3
)

// Backend selects a rules engine implementation.
type Backend int

const (
	Dragon Backend = iota
	Notnil
)

// String returns the config name of the backend.
func (b Backend) String() string {
	switch b {
	case Dragon:
		return "dragon"
	case Notnil:
		return "notnil"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend parses a backend name as used in config files and UCI options.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dragon", "dragontoothmg":
		return Dragon, nil
	case "notnil", "chess":
		return Notnil, nil
	}
	return Dragon, fmt.Errorf("unknown rules backend %q", s)
}

// New creates a position for fen using the given backend.
func New(b Backend, fen string) (board.Position, error) {
	switch b {
	case Dragon:
		return NewDragon(fen)
	case Notnil:
		return NewNotnil(fen)
	}
	return nil, fmt.Errorf("unknown rules backend %d", int(b))
}

// NewStart creates the standard starting position.
func NewStart(b Backend) board.Position {
	pos, err := New(b, board.StartFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

// insufficientMaterial reports positions where neither side can mate:
// bare kings, a single minor piece, or only bishops all on one square color.
func insufficientMaterial(pos board.Position) bool {
	var minors, knights int
	var bishopColors [2]int
	heavy := false

	pos.EachPiece(func(sq board.Square, p board.Piece) {
		switch p.Type {
		case board.Pawn, board.Rook, board.Queen:
			heavy = true
		case board.Knight:
			minors++
			knights++
		case board.Bishop:
			minors++
			if sq.IsLight() {
				bishopColors[1]++
			} else {
				bishopColors[0]++
			}
		}
	})

	switch {
	case heavy:
		return false
	case minors <= 1:
		return true
	case knights == 0:
		return bishopColors[0] == 0 || bishopColors[1] == 0
	}
	return false
}
