package engine

import (
	"math"

	"github.com/hailam/chessbot/internal/board"
)

// Search window sentinels. NegInfinity is one above math.MinInt so that
// negating either bound never overflows.
const (
	Infinity    = math.MaxInt
	NegInfinity = -Infinity
)

// searcher holds the state of a single think. It is never shared between
// thinks or goroutines.
type searcher struct {
	pos  board.Position
	eval Evaluator

	nodes   uint64
	cutoffs uint64

	// onFrame, when set, is called on entry to every frame.
	onFrame func(depth, alpha, beta int)
}

func newSearcher(pos board.Position, eval Evaluator) *searcher {
	return &searcher{pos: pos, eval: eval}
}

// leaf returns the static evaluation from the side to move's point of view.
func (s *searcher) leaf() int {
	return s.eval.Evaluate(s.pos) * s.pos.SideToMove().Sign()
}

// negamax searches the current position to the given depth inside the
// window [alpha, beta] and returns its value for the side to move. The root
// frame of an iteration also returns the move that produced the value;
// every other frame returns board.NoMove.
//
// Moves are searched in generation order. Each Apply is undone before the
// next sibling is considered, and a beta cutoff stops the loop without
// touching the remaining siblings.
func (s *searcher) negamax(depth, alpha, beta int, root bool) (int, board.Move) {
	if s.onFrame != nil {
		s.onFrame(depth, alpha, beta)
	}
	s.nodes++

	pos := s.pos
	if depth == 0 || pos.IsCheckmate() || pos.IsDraw() {
		return s.leaf(), board.NoMove
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		// The rules engine reported neither mate nor draw but has no moves.
		return s.leaf(), board.NoMove
	}

	best := NegInfinity
	bestMove := board.NoMove
	for _, m := range moves {
		pos.Apply(m)
		v, _ := s.negamax(depth-1, -beta, -alpha, false)
		pos.Undo()
		v = -v

		if v > best {
			best = v
			if root {
				bestMove = m
			}
		}
		alpha = max(alpha, best)
		if alpha >= beta {
			s.cutoffs++
			break
		}
	}
	return best, bestMove
}
