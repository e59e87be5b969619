// Package engine implements the chess AI search engine: a static evaluator,
// an alpha-beta negamax search and the iterative deepening driver around it.
package engine

import (
	"fmt"

	"github.com/hailam/chessbot/internal/board"
)

// Evaluation constants
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900

	// MateScore is the value of a checkmate. It is not adjusted by ply, so
	// a mate found deeper in the tree scores the same as a near one.
	MateScore = 100000
)

// Piece values indexed by board.PieceType. The king has no material value.
var pieceValues = [7]int{0, PawnValue, KnightValue, BishopValue, RookValue, QueenValue, 0}

// Piece-square tables, written from White's point of view with rank 8 on
// the first line. A white piece on sq reads index sq.Mirror(); a black piece
// reads index sq, which is the same square seen from Black's side.
var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	30, 30, 30, 30, 30, 30, 30, 30,
	20, 20, 20, 20, 20, 20, 20, 20,
	15, 15, 15, 15, 15, 15, 15, 15,
	10, 10, 10, 10, 10, 10, 10, 10,
	5, 5, 5, 5, 5, 5, 5, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	0, 5, 10, 15, 15, 10, 5, 0,
	5, 10, 15, 20, 20, 15, 10, 5,
	10, 15, 20, 25, 25, 20, 15, 10,
	15, 20, 25, 30, 30, 25, 20, 15,
	15, 20, 25, 30, 30, 25, 20, 15,
	10, 15, 20, 25, 25, 20, 15, 10,
	5, 10, 15, 20, 20, 15, 10, 5,
	0, 5, 10, 15, 15, 10, 5, 0,
}

var bishopPST = [64]int{
	-2, 0, 2, 4, 4, 2, 0, -2,
	0, 2, 4, 6, 6, 4, 2, 0,
	2, 4, 6, 8, 8, 6, 4, 2,
	4, 6, 8, 10, 10, 8, 6, 4,
	4, 6, 8, 10, 10, 8, 6, 4,
	2, 4, 6, 8, 8, 6, 4, 2,
	0, 2, 4, 6, 6, 4, 2, 0,
	-2, 0, 2, 4, 4, 2, 0, -2,
}

var psts = [7]*[64]int{
	board.Pawn:   &pawnPST,
	board.Knight: &knightPST,
	board.Bishop: &bishopPST,
}

// Evaluator scores a position from White's point of view: positive values
// favor White. Implementations must not modify the position.
type Evaluator interface {
	Evaluate(pos board.Position) int
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(pos board.Position) int

// Evaluate calls f(pos).
func (f EvaluatorFunc) Evaluate(pos board.Position) int {
	return f(pos)
}

// Classical is the default evaluator: terminal detection, material and,
// when Positional is set, the piece-square bonuses.
type Classical struct {
	Positional bool
}

// DefaultEvaluator returns the evaluator used when none is configured.
func DefaultEvaluator() Evaluator {
	return Classical{Positional: true}
}

// Evaluate returns the static score of pos. A checkmate scores MateScore
// against the mated side and any draw scores 0.
func (c Classical) Evaluate(pos board.Position) int {
	if score, ok := terminalScore(pos); ok {
		return score
	}
	if !c.Positional {
		return Material(pos)
	}

	score := 0
	pos.EachPiece(func(sq board.Square, p board.Piece) {
		v := pieceValues[p.Type]
		if pst := psts[p.Type]; pst != nil {
			if p.Color == board.White {
				v += pst[sq.Mirror()]
			} else {
				v += pst[sq]
			}
		}
		score += v * p.Color.Sign()
	})
	return score
}

// terminalScore reports the score of a finished game. The rules engine must
// never call a position both checkmate and drawn; if it does the search
// cannot trust anything it reports, so this panics.
func terminalScore(pos board.Position) (int, bool) {
	mate, draw := pos.IsCheckmate(), pos.IsDraw()
	switch {
	case mate && draw:
		panic(fmt.Errorf("%w: %s is both checkmate and a draw", board.ErrRulesContract, pos.FEN()))
	case mate:
		// The side to move is the one mated.
		return -MateScore * pos.SideToMove().Sign(), true
	case draw:
		return 0, true
	}
	return 0, false
}

// Material returns the material balance of pos in centipawns, White minus
// Black, ignoring terminal states and piece placement.
func Material(pos board.Position) int {
	score := 0
	pos.EachPiece(func(_ board.Square, p board.Piece) {
		score += pieceValues[p.Type] * p.Color.Sign()
	})
	return score
}
