package rules

import (
	"fmt"
	"math/bits"

	dragon "github.com/dylhunn/dragontoothmg"

	"github.com/hailam/chessbot/internal/board"
)

// dragonNode is one entry of the make/undo stack. The root node has no
// unapply func.
type dragonNode struct {
	hash    uint64
	unapply func()
	legal   []dragon.Move
	movegen bool
}

// DragonPosition is a board.Position backed by dragontoothmg's bitboard
// move generator. Apply hands back dragontoothmg's unapply closure, which
// is kept on a stack so Undo restores the board in strict reverse order.
type DragonPosition struct {
	b     dragon.Board
	past  []uint64 // hashes before the root node, for repetition only
	nodes []dragonNode
}

// NewDragon creates a position from a FEN string.
func NewDragon(fen string) (*DragonPosition, error) {
	b, err := parseDragon(fen)
	if err != nil {
		return nil, err
	}
	p := &DragonPosition{b: b}
	p.nodes = []dragonNode{{hash: p.b.Hash()}}
	return p, nil
}

// parseDragon validates fen and parses it into a dragontoothmg board. A
// position where the side that just moved is still in check is refused:
// dragontoothmg would offer the king capture and then index past its
// square tables. Both backends share this parse.
func parseDragon(fen string) (b dragon.Board, err error) {
	if err := board.ValidateFEN(fen); err != nil {
		return b, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid FEN %q: %v", fen, r)
		}
	}()

	b = dragon.ParseFen(fen)
	other := b
	other.Wtomove = !other.Wtomove
	if other.OurKingInCheck() {
		return b, fmt.Errorf("invalid FEN %q: side not to move is in check", fen)
	}
	return b, nil
}

func (p *DragonPosition) top() *dragonNode {
	return &p.nodes[len(p.nodes)-1]
}

// legal returns the native legal moves of the current node, generating
// them at most once per node.
func (p *DragonPosition) legal() []dragon.Move {
	n := p.top()
	if !n.movegen {
		n.legal = p.b.GenerateLegalMoves()
		n.movegen = true
	}
	return n.legal
}

// SideToMove returns the color to move.
func (p *DragonPosition) SideToMove() board.Color {
	if p.b.Wtomove {
		return board.White
	}
	return board.Black
}

// LegalMoves returns the legal moves in dragontoothmg's generation order.
func (p *DragonPosition) LegalMoves() []board.Move {
	native := p.legal()
	moves := make([]board.Move, len(native))
	for i, m := range native {
		moves[i] = fromDragonMove(m)
	}
	return moves
}

// Apply plays m. It panics with board.ErrIllegalMove if m is not legal.
func (p *DragonPosition) Apply(m board.Move) {
	for _, native := range p.legal() {
		if fromDragonMove(native) != m {
			continue
		}
		unapply := p.b.Apply(native)
		p.nodes = append(p.nodes, dragonNode{hash: p.b.Hash(), unapply: unapply})
		return
	}
	panic(fmt.Errorf("%w: %s in %s", board.ErrIllegalMove, m, p.b.ToFen()))
}

// Undo takes back the last applied move.
func (p *DragonPosition) Undo() {
	if len(p.nodes) < 2 {
		panic(board.ErrNoHistory)
	}
	p.top().unapply()
	p.nodes[len(p.nodes)-1] = dragonNode{}
	p.nodes = p.nodes[:len(p.nodes)-1]
}

// InCheck reports whether the side to move is in check.
func (p *DragonPosition) InCheck() bool {
	return p.b.OurKingInCheck()
}

// IsCheckmate reports whether the side to move is checkmated.
func (p *DragonPosition) IsCheckmate() bool {
	return len(p.legal()) == 0 && p.b.OurKingInCheck()
}

// IsDraw reports stalemate, fifty-move rule, threefold repetition and
// insufficient material.
func (p *DragonPosition) IsDraw() bool {
	if len(p.legal()) == 0 {
		return !p.b.OurKingInCheck()
	}
	if int(p.b.Halfmoveclock) >= fiftyMoveLimit {
		return true
	}
	if p.repetitions() >= repetitionLimit {
		return true
	}
	return insufficientMaterial(p)
}

func (p *DragonPosition) repetitions() int {
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

// EachPiece calls fn for every piece on the board.
func (p *DragonPosition) EachPiece(fn func(sq board.Square, pc board.Piece)) {
	eachDragonPiece(&p.b.White, board.White, fn)
	eachDragonPiece(&p.b.Black, board.Black, fn)
}

func eachDragonPiece(bbs *dragon.Bitboards, c board.Color, fn func(sq board.Square, pc board.Piece)) {
	sets := [...]struct {
		bb uint64
		pt board.PieceType
	}{
		{bbs.Pawns, board.Pawn},
		{bbs.Knights, board.Knight},
		{bbs.Bishops, board.Bishop},
		{bbs.Rooks, board.Rook},
		{bbs.Queens, board.Queen},
		{bbs.Kings, board.King},
	}
	for _, set := range sets {
		for bb := set.bb; bb != 0; bb &= bb - 1 {
			fn(board.Square(bits.TrailingZeros64(bb)), board.NewPiece(set.pt, c))
		}
	}
}

// FEN returns the FEN of the current position.
func (p *DragonPosition) FEN() string {
	return p.b.ToFen()
}

// Hash returns dragontoothmg's Zobrist hash.
func (p *DragonPosition) Hash() uint64 {
	return p.b.Hash()
}

// Ply returns the number of moves that can be undone.
func (p *DragonPosition) Ply() int {
	return len(p.nodes) - 1
}

// Clone returns an independent copy of the position.
func (p *DragonPosition) Clone() board.Position {
	past := make([]uint64, 0, len(p.past)+len(p.nodes)-1)
	past = append(past, p.past...)
	for _, n := range p.nodes[:len(p.nodes)-1] {
		past = append(past, n.hash)
	}
	return &DragonPosition{
		b:     p.b,
		past:  past,
		nodes: []dragonNode{{hash: p.b.Hash()}},
	}
}

func fromDragonMove(m dragon.Move) board.Move {
	return board.Move{
		From:      board.Square(m.From()),
		To:        board.Square(m.To()),
		Promotion: fromDragonPiece(m.Promote()),
	}
}

func fromDragonPiece(pc dragon.Piece) board.PieceType {
	switch pc {
	case dragon.Knight:
		return board.Knight
	case dragon.Bishop:
		return board.Bishop
	case dragon.Rook:
		return board.Rook
	case dragon.Queen:
		return board.Queen
	}
	return board.NoPieceType
}
