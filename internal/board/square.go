// Package board defines the chess vocabulary shared by the search and the
// rules-engine adapters: squares, colours, pieces, moves and the Position
// contract the search drives through Apply/Undo.
package board

import "fmt"

// Square indexes the board rank by rank from a1 (0) to h8 (63), the layout
// both rules engines use for their bitboards.
type Square uint8

const (
	A1 Square = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
	NoSquare Square = 64
)

// File returns 0 for the a-file through 7 for the h-file.
func (sq Square) File() int {
	return int(sq) & 7
}

// Rank returns 0 for the first rank through 7 for the eighth.
func (sq Square) Rank() int {
	return int(sq) >> 3
}

// String returns the square's coordinate, or "-" as in a FEN en passant
// field.
func (sq Square) String() string {
	if sq >= NoSquare {
		return "-"
	}
	return string([]byte{byte('a' + sq.File()), byte('1' + sq.Rank())})
}

func NewSquare(file, rank int) Square {
	return Square(rank*8 + file)
}

// ParseSquare parses a coordinate such as "e4".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}

// Mirror flips the square to the other side of the board, a1 to a8.
func (sq Square) Mirror() Square {
	return sq ^ 56
}

// IsLight reports the square color; a1 is dark.
func (sq Square) IsLight() bool {
	return (sq.File()+sq.Rank())%2 == 1
}
