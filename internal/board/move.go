package board

import "fmt"

// Move is a move as produced by a rules engine: origin, destination and an
// optional promotion piece. Castling is expressed as the king's two-square
// step and en passant as the pawn's diagonal step, as in UCI.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType
}

// NoMove is the "no move" sentinel. It is never a legal move since its
// origin and destination coincide.
var NoMove = Move{}

// NewMove creates a non-promoting move.
func NewMove(from, to Square) Move {
	return Move{From: from, To: to}
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return Move{From: from, To: to, Promotion: promo}
}

// IsNull reports whether m is the NoMove sentinel.
func (m Move) IsNull() bool {
	return m == NoMove
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Promotion != NoPieceType
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m.IsNull() {
		return "0000"
	}

	s := m.From.String() + m.To.String()
	if m.IsPromotion() {
		s += string(m.Promotion.Char())
	}
	return s
}

// ParseMove parses a UCI format move string. It only checks the syntax;
// legality is the rules engine's business (see Play).
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	m := NewMove(from, to)
	if len(s) == 5 {
		promo := PieceTypeFromChar(s[4])
		switch promo {
		case Knight, Bishop, Rook, Queen:
			m.Promotion = promo
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
	}

	if m.IsNull() {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}
	return m, nil
}
