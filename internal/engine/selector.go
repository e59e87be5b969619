package engine

import (
	"github.com/hailam/chessbot/internal/board"
)

// selector is the best-move record of one think. Each completed iteration
// overwrites it; results of different depths are never compared.
type selector struct {
	move  board.Move
	score int
	depth int
}

func (s *selector) reset() {
	*s = selector{}
}

func (s *selector) record(depth int, m board.Move, score int) {
	s.move = m
	s.score = score
	s.depth = depth
}

// SelectMove turns a search result into a move the caller can play. If the
// search produced no move but the position has legal moves, the first legal
// move is returned. A terminal position yields board.ErrNoLegalMoves.
func SelectMove(pos board.Position, res Result) (board.Move, error) {
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return board.NoMove, board.ErrNoLegalMoves
	}
	if !res.Move.IsNull() {
		return res.Move, nil
	}
	return moves[0], nil
}
