package board

// Color represents the color of a piece or player.
type Color uint8

const (
	White Color = iota
	Black
	NoColor Color = 2
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// Sign returns +1 for White and -1 for Black. Scores computed from White's
// side are multiplied by it to get the side-to-move view.
func (c Color) Sign() int {
	if c == Black {
		return -1
	}
	return 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "NoColor"
	}
}

// PieceType represents the kind of a chess piece. The zero value means
// "no piece", so a Move without promotion carries NoPieceType.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// String returns the piece type name.
func (pt PieceType) String() string {
	switch pt {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return "None"
	}
}

// Char returns the lowercase FEN letter of the piece type, or 0 for none.
func (pt PieceType) Char() byte {
	switch pt {
	case Pawn:
		return 'p'
	case Knight:
		return 'n'
	case Bishop:
		return 'b'
	case Rook:
		return 'r'
	case Queen:
		return 'q'
	case King:
		return 'k'
	}
	return 0
}

// PieceTypeFromChar converts a lowercase FEN letter to a PieceType.
func PieceTypeFromChar(c byte) PieceType {
	switch c {
	case 'p':
		return Pawn
	case 'n':
		return Knight
	case 'b':
		return Bishop
	case 'r':
		return Rook
	case 'q':
		return Queen
	case 'k':
		return King
	}
	return NoPieceType
}

// Piece is a piece of a given type and color standing on the board.
type Piece struct {
	Type  PieceType
	Color Color
}

// NoPiece is the empty-square value.
var NoPiece = Piece{Type: NoPieceType, Color: NoColor}

// NewPiece creates a Piece from PieceType and Color.
func NewPiece(pt PieceType, c Color) Piece {
	if pt == NoPieceType || c >= NoColor {
		return NoPiece
	}
	return Piece{Type: pt, Color: c}
}

// String returns the FEN character for the piece.
// Uppercase for white, lowercase for black.
func (p Piece) String() string {
	ch := p.Type.Char()
	if ch == 0 {
		return " "
	}
	if p.Color == White {
		ch -= 'a' - 'A'
	}
	return string(ch)
}

// PieceFromChar converts a FEN character to a Piece.
func PieceFromChar(c byte) Piece {
	if c >= 'A' && c <= 'Z' {
		return NewPiece(PieceTypeFromChar(c+('a'-'A')), White)
	}
	return NewPiece(PieceTypeFromChar(c), Black)
}
