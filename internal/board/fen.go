package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Counter limits of the narrowest rules engine (uint8 and uint16 fields).
const (
	maxHalfMoveClock = 255
	maxFullMove      = 65535
)

// castlingRight lists the king and rook squares a castling flag requires.
type castlingRight struct {
	color      Color
	king, rook Square
}

var castlingRights = map[rune]castlingRight{
	'K': {White, E1, H1},
	'Q': {White, E1, A1},
	'k': {Black, E8, H8},
	'q': {Black, E8, A8},
}

// ValidateFEN checks the syntax of a FEN string and the sanity conditions
// every rules engine relies on: one king per side, no pawns on the back
// ranks, castling rights only with king and rook at home, counters that fit
// the engines' fields. Rules adapters call it before handing the string to a
// library that would otherwise panic or build a broken board.
func ValidateFEN(fen string) error {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	var kings [2]int
	var placement [64]Piece
	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}
	for i, rankStr := range ranks {
		rank := 7 - i // FEN starts from rank 8
		file := 0
		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			piece := PieceFromChar(byte(c))
			if piece == NoPiece {
				return fmt.Errorf("invalid piece character: %c", c)
			}
			if piece.Type == Pawn && (rank == 0 || rank == 7) {
				return fmt.Errorf("pawn on rank %d", rank+1)
			}
			if piece.Type == King {
				kings[piece.Color]++
			}
			placement[NewSquare(file, rank)] = piece
			file++
		}
		if file != 8 {
			return fmt.Errorf("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}
	if kings[White] != 1 || kings[Black] != 1 {
		return fmt.Errorf("each side must have exactly one king")
	}

	if parts[1] != "w" && parts[1] != "b" {
		return fmt.Errorf("invalid side to move: %s", parts[1])
	}

	if parts[2] != "-" {
		for _, c := range parts[2] {
			right, ok := castlingRights[c]
			if !ok {
				return fmt.Errorf("invalid castling character: %c", c)
			}
			if placement[right.king] != NewPiece(King, right.color) || placement[right.rook] != NewPiece(Rook, right.color) {
				return fmt.Errorf("castling right %c without king on %s and rook on %s", c, right.king, right.rook)
			}
		}
	}

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil || (sq.Rank() != 2 && sq.Rank() != 5) {
			return fmt.Errorf("invalid en passant square: %s", parts[3])
		}
	}

	counters := []struct {
		name string
		max  int
	}{
		{"half-move clock", maxHalfMoveClock},
		{"full-move number", maxFullMove},
	}
	for i, c := range counters {
		if len(parts) > 4+i {
			if n, err := strconv.Atoi(parts[4+i]); err != nil || n < 0 || n > c.max {
				return fmt.Errorf("invalid %s: %s", c.name, parts[4+i])
			}
		}
	}

	return nil
}

// HalfMoveClock returns the half-move clock field of a FEN string, or 0
// when it is absent or malformed.
func HalfMoveClock(fen string) int {
	parts := strings.Fields(fen)
	if len(parts) < 5 {
		return 0
	}
	n, err := strconv.Atoi(parts[4])
	if err != nil {
		return 0
	}
	return n
}

// RepetitionKey returns the part of a FEN that decides whether two
// positions repeat: placement, side to move, castling and en passant.
func RepetitionKey(fen string) string {
	parts := strings.Fields(fen)
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return strings.Join(parts, " ")
}

// MirrorFEN returns the color-flipped counterpart of a position: the board
// is mirrored top to bottom, piece colors are swapped and the other side is
// to move. Every evaluation term of the mirrored position is the negation
// of the original's.
func MirrorFEN(fen string) (string, error) {
	if err := ValidateFEN(fen); err != nil {
		return "", err
	}
	parts := strings.Fields(fen)

	ranks := strings.Split(parts[0], "/")
	for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
		ranks[i], ranks[j] = ranks[j], ranks[i]
	}
	parts[0] = swapCase(strings.Join(ranks, "/"))

	if parts[1] == "w" {
		parts[1] = "b"
	} else {
		parts[1] = "w"
	}

	if parts[2] != "-" {
		swapped := swapCase(parts[2])
		var sb strings.Builder
		for _, c := range "KQkq" {
			if strings.ContainsRune(swapped, c) {
				sb.WriteRune(c)
			}
		}
		parts[2] = sb.String()
	}

	if parts[3] != "-" {
		sq, _ := ParseSquare(parts[3])
		parts[3] = sq.Mirror().String()
	}

	return strings.Join(parts, " "), nil
}

func swapCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - ('a' - 'A')
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
