package board

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalMove is returned (or panicked with, inside a search) when a
	// move is not legal in the position it is applied to.
	ErrIllegalMove = errors.New("illegal move")

	// ErrNoHistory is panicked with when Undo is called with nothing to undo.
	ErrNoHistory = errors.New("no move to undo")

	// ErrNoLegalMoves is returned when a move is requested for a position
	// that is already terminal.
	ErrNoLegalMoves = errors.New("no legal moves")

	// ErrRulesContract reports that a rules engine answered inconsistently,
	// e.g. a position reported both as checkmate and as drawn.
	ErrRulesContract = errors.New("rules engine contract violation")
)

// Position is the mutable board state a search works on. Implementations
// wrap a chess rules engine; the search only ever calls Apply/Undo in strict
// stack order and the query methods, which must be side-effect free.
type Position interface {
	// SideToMove returns the color to move.
	SideToMove() Color

	// LegalMoves returns the legal moves in generation order. The returned
	// slice belongs to the caller and is not reused by later calls.
	LegalMoves() []Move

	// Apply plays m, which must be legal here. A move the implementation
	// can tell is illegal causes a panic wrapping ErrIllegalMove.
	Apply(m Move)

	// Undo takes back the most recent Apply. It panics with ErrNoHistory
	// when there is nothing to take back.
	Undo()

	// IsCheckmate reports whether the side to move is checkmated.
	IsCheckmate() bool

	// IsDraw reports stalemate, insufficient material, threefold
	// repetition or the fifty-move rule. A checkmated position is never
	// a draw.
	IsDraw() bool

	// InCheck reports whether the side to move is in check.
	InCheck() bool

	// EachPiece calls fn for every piece on the board.
	EachPiece(fn func(sq Square, p Piece))

	// FEN returns the Forsyth-Edwards notation of the position.
	FEN() string

	// Hash returns a key identifying the position for repetition purposes.
	Hash() uint64

	// Ply returns the number of moves that can currently be undone.
	Ply() int

	// Clone returns an independent copy sharing no mutable state. The copy
	// keeps the repetition history but cannot undo past its own start.
	Clone() Position
}

// HasMove reports whether m is among the legal moves of pos.
func HasMove(pos Position, m Move) bool {
	for _, legal := range pos.LegalMoves() {
		if legal == m {
			return true
		}
	}
	return false
}

// Play validates m against the legal moves of pos and applies it. Unlike
// Position.Apply it reports an illegal move as an error, for moves coming
// from users or other programs.
func Play(pos Position, m Move) error {
	if !HasMove(pos, m) {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	pos.Apply(m)
	return nil
}
