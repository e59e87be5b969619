package rules

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/notnil/chess"

	"github.com/hailam/chessbot/internal/board"
)

type notnilNode struct {
	pos     *chess.Position
	fen     string
	hash    uint64
	inCheck bool
}

// NotnilPosition is a board.Position backed by notnil/chess. Its positions
// are immutable, so Apply pushes the successor returned by Update and Undo
// simply pops it.
type NotnilPosition struct {
	past  []uint64
	nodes []notnilNode
}

// NewNotnil creates a position from a FEN string.
func NewNotnil(fen string) (*NotnilPosition, error) {
	b, err := parseDragon(fen)
	if err != nil {
		return nil, err
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	game := chess.NewGame(opt)

	// notnil/chess only records check as a tag on the move that gave it,
	// so the root's check state comes from dragontoothmg.
	root := newNotnilNode(game.Position())
	root.inCheck = b.OurKingInCheck()

	return &NotnilPosition{nodes: []notnilNode{root}}, nil
}

func newNotnilNode(pos *chess.Position) notnilNode {
	fen := pos.String()
	return notnilNode{
		pos:  pos,
		fen:  fen,
		hash: xxhash.Sum64String(board.RepetitionKey(fen)),
	}
}

func (p *NotnilPosition) top() *notnilNode {
	return &p.nodes[len(p.nodes)-1]
}

// SideToMove returns the color to move.
func (p *NotnilPosition) SideToMove() board.Color {
	if p.top().pos.Turn() == chess.White {
		return board.White
	}
	return board.Black
}

// LegalMoves returns the legal moves in notnil/chess generation order.
func (p *NotnilPosition) LegalMoves() []board.Move {
	native := p.top().pos.ValidMoves()
	moves := make([]board.Move, len(native))
	for i, m := range native {
		moves[i] = fromNotnilMove(m)
	}
	return moves
}

// Apply plays m. It panics with board.ErrIllegalMove if m is not legal.
func (p *NotnilPosition) Apply(m board.Move) {
	cur := p.top().pos
	for _, native := range cur.ValidMoves() {
		if fromNotnilMove(native) != m {
			continue
		}
		next := newNotnilNode(cur.Update(native))
		next.inCheck = native.HasTag(chess.Check)
		p.nodes = append(p.nodes, next)
		return
	}
	panic(fmt.Errorf("%w: %s in %s", board.ErrIllegalMove, m, p.top().fen))
}

// Undo takes back the last applied move.
func (p *NotnilPosition) Undo() {
	if len(p.nodes) < 2 {
		panic(board.ErrNoHistory)
	}
	p.nodes[len(p.nodes)-1] = notnilNode{}
	p.nodes = p.nodes[:len(p.nodes)-1]
}

// InCheck reports whether the side to move is in check.
func (p *NotnilPosition) InCheck() bool {
	return p.top().inCheck
}

// IsCheckmate reports whether the side to move is checkmated.
func (p *NotnilPosition) IsCheckmate() bool {
	return p.top().pos.Status() == chess.Checkmate
}

// IsDraw reports stalemate, fifty-move rule, threefold repetition and
// insufficient material.
func (p *NotnilPosition) IsDraw() bool {
	switch p.top().pos.Status() {
	case chess.Checkmate:
		return false
	case chess.Stalemate:
		return true
	}
	if board.HalfMoveClock(p.top().fen) >= fiftyMoveLimit {
		return true
	}
	if p.repetitions() >= repetitionLimit {
		return true
	}
	return insufficientMaterial(p)
}

func (p *NotnilPosition) repetitions() int {
	current := p.top().hash
	count := 0
	for _, h := range p.past {
		if h == current {
			count++
		}
	}
	for _, n := range p.nodes {
		if n.hash == current {
			count++
		}
	}
	return count
}

// EachPiece calls fn for every piece on the board, a1 to h8.
func (p *NotnilPosition) EachPiece(fn func(sq board.Square, pc board.Piece)) {
	b := p.top().pos.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		pc := b.Piece(sq)
		if pc == chess.NoPiece {
			continue
		}
		fn(board.Square(sq), fromNotnilPiece(pc))
	}
}

// FEN returns the FEN of the current position.
func (p *NotnilPosition) FEN() string {
	return p.top().fen
}

// Hash returns a hash of the position's repetition key.
func (p *NotnilPosition) Hash() uint64 {
	return p.top().hash
}

// Ply returns the number of moves that can be undone.
func (p *NotnilPosition) Ply() int {
	return len(p.nodes) - 1
}

// Clone returns an independent copy of the position. The underlying
// notnil positions are immutable and can be shared.
func (p *NotnilPosition) Clone() board.Position {
	past := make([]uint64, 0, len(p.past)+len(p.nodes)-1)
	past = append(past, p.past...)
	for _, n := range p.nodes[:len(p.nodes)-1] {
		past = append(past, n.hash)
	}
	return &NotnilPosition{past: past, nodes: []notnilNode{*p.top()}}
}

func fromNotnilMove(m *chess.Move) board.Move {
	return board.Move{
		From:      board.Square(m.S1()),
		To:        board.Square(m.S2()),
		Promotion: fromNotnilType(m.Promo()),
	}
}

func fromNotnilPiece(pc chess.Piece) board.Piece {
	c := board.White
	if pc.Color() == chess.Black {
		c = board.Black
	}
	return board.NewPiece(fromNotnilType(pc.Type()), c)
}

func fromNotnilType(pt chess.PieceType) board.PieceType {
	switch pt {
	case chess.Pawn:
		return board.Pawn
	case chess.Knight:
		return board.Knight
	case chess.Bishop:
		return board.Bishop
	case chess.Rook:
		return board.Rook
	case chess.Queen:
		return board.Queen
	case chess.King:
		return board.King
	}
	return board.NoPieceType
}
