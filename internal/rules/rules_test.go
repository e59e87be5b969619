package rules

import (
	"errors"
	"sort"
	"testing"

	"github.com/hailam/chessbot/internal/board"
)

var backends = []Backend{Dragon, Notnil}

func mustNew(t *testing.T, b Backend, fen string) board.Position {
	t.Helper()
	pos, err := New(b, fen)
	if err != nil {
		t.Fatalf("%s: New(%q): %v", b, fen, err)
	}
	return pos
}

func playAll(t *testing.T, pos board.Position, moves ...string) {
	t.Helper()
	for _, s := range moves {
		m, err := board.ParseMove(s)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", s, err)
		}
		if err := board.Play(pos, m); err != nil {
			t.Fatalf("Play(%s) in %s: %v", s, pos.FEN(), err)
		}
	}
}

// perft counts the number of leaf nodes at the given depth.
func perft(pos board.Position, depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := pos.LegalMoves()
	if depth == 1 {
		return int64(len(moves))
	}

	var nodes int64
	for _, m := range moves {
		pos.Apply(m)
		nodes += perft(pos, depth-1)
		pos.Undo()
	}
	return nodes
}

func TestPerft(t *testing.T) {
	tests := []struct {
		name     string
		fen      string
		depth    int
		expected int64
	}{
		{"start/1", board.StartFEN, 1, 20},
		{"start/2", board.StartFEN, 2, 400},
		{"start/3", board.StartFEN, 3, 8902},
		{"kiwipete/1", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", 1, 48},
		{"kiwipete/2", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", 2, 2039},
		{"endgame/3", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1", 3, 2812},
	}

	for _, b := range backends {
		for _, tc := range tests {
			t.Run(b.String()+"/"+tc.name, func(t *testing.T) {
				pos := mustNew(t, b, tc.fen)
				before := pos.FEN()
				if got := perft(pos, tc.depth); got != tc.expected {
					t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
				}
				if pos.FEN() != before || pos.Ply() != 0 {
					t.Errorf("position changed by perft: %s (ply %d)", pos.FEN(), pos.Ply())
				}
			})
		}
	}
}

func TestApplyUndoRoundTrip(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
		"8/P6k/8/8/8/8/6p1/K7 b - - 0 1",
	}

	for _, b := range backends {
		for _, fen := range fens {
			pos := mustNew(t, b, fen)
			beforeFEN, beforeHash := pos.FEN(), pos.Hash()
			for _, m := range pos.LegalMoves() {
				pos.Apply(m)
				if pos.Ply() != 1 {
					t.Fatalf("%s: ply after Apply(%s) = %d", b, m, pos.Ply())
				}
				pos.Undo()
				if pos.FEN() != beforeFEN || pos.Hash() != beforeHash || pos.Ply() != 0 {
					t.Fatalf("%s: Apply/Undo %s changed %s into %s", b, m, beforeFEN, pos.FEN())
				}
			}
		}
	}
}

func TestBackendsAgree(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
		"8/P6k/8/8/8/8/6p1/K7 w - - 0 1",
	}

	for _, fen := range fens {
		var sets [2][]string
		for i, b := range backends {
			for _, m := range mustNew(t, b, fen).LegalMoves() {
				sets[i] = append(sets[i], m.String())
			}
			sort.Strings(sets[i])
		}
		if len(sets[0]) != len(sets[1]) {
			t.Fatalf("%s: dragon has %d moves, notnil %d", fen, len(sets[0]), len(sets[1]))
		}
		for i := range sets[0] {
			if sets[0][i] != sets[1][i] {
				t.Fatalf("%s: move lists differ: %v vs %v", fen, sets[0], sets[1])
			}
		}
	}
}

func TestPromotions(t *testing.T) {
	for _, b := range backends {
		pos := mustNew(t, b, "8/P6k/8/8/8/8/8/K7 w - - 0 1")
		promos := map[board.PieceType]bool{}
		for _, m := range pos.LegalMoves() {
			if m.From == board.A7 && m.To == board.A8 {
				promos[m.Promotion] = true
			}
		}
		for _, pt := range []board.PieceType{board.Knight, board.Bishop, board.Rook, board.Queen} {
			if !promos[pt] {
				t.Errorf("%s: missing promotion to %s", b, pt)
			}
		}
		if promos[board.NoPieceType] {
			t.Errorf("%s: a7a8 generated without a promotion piece", b)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	tests := []struct {
		name      string
		fen       string
		checkmate bool
		draw      bool
		inCheck   bool
	}{
		{"back rank mate", "R6k/6pp/8/8/8/8/8/K7 b - - 0 1", true, false, true},
		{"king can escape", "6Rk/8/8/8/8/8/8/K7 b - - 0 1", false, false, true},
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", false, true, false},
		{"bare kings", "8/8/8/4k3/8/8/8/K7 w - - 0 1", false, true, false},
		{"king and bishop", "8/8/8/4k3/8/8/8/K1B5 w - - 0 1", false, true, false},
		{"same colored bishops", "8/8/8/4k3/8/4b3/8/K1B5 w - - 0 1", false, true, false},
		{"two knights", "8/8/8/4k3/8/8/8/KNN5 w - - 0 1", false, false, false},
		{"fifty moves", "7k/8/8/8/8/8/8/K5R1 w - - 100 80", false, true, false},
		{"forty-nine and a half moves", "7k/8/8/8/8/8/8/K5R1 w - - 99 80", false, false, false},
		{"start", board.StartFEN, false, false, false},
	}

	for _, b := range backends {
		for _, tc := range tests {
			t.Run(b.String()+"/"+tc.name, func(t *testing.T) {
				pos := mustNew(t, b, tc.fen)
				if got := pos.IsCheckmate(); got != tc.checkmate {
					t.Errorf("IsCheckmate() = %v, want %v", got, tc.checkmate)
				}
				if got := pos.IsDraw(); got != tc.draw {
					t.Errorf("IsDraw() = %v, want %v", got, tc.draw)
				}
				if got := pos.InCheck(); got != tc.inCheck {
					t.Errorf("InCheck() = %v, want %v", got, tc.inCheck)
				}
			})
		}
	}
}

func TestCheckAfterApply(t *testing.T) {
	for _, b := range backends {
		pos := mustNew(t, b, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
		playAll(t, pos, "a1a8")
		if !pos.InCheck() || !pos.IsCheckmate() {
			t.Errorf("%s: expected checkmate after a1a8, got inCheck=%v mate=%v", b, pos.InCheck(), pos.IsCheckmate())
		}
		pos.Undo()
		if pos.InCheck() {
			t.Errorf("%s: still in check after Undo", b)
		}
	}
}

func TestThreefoldRepetition(t *testing.T) {
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}

	for _, b := range backends {
		pos := mustNew(t, b, board.StartFEN)
		playAll(t, pos, shuffle...)
		if pos.IsDraw() {
			t.Fatalf("%s: draw after one repetition", b)
		}
		playAll(t, pos, shuffle...)
		if !pos.IsDraw() {
			t.Fatalf("%s: no draw after the start position occurred three times", b)
		}

		// The clone keeps the history it cannot undo.
		clone := pos.Clone()
		if !clone.IsDraw() || clone.Ply() != 0 {
			t.Errorf("%s: clone lost repetition history (draw=%v ply=%d)", b, clone.IsDraw(), clone.Ply())
		}

		pos.Undo()
		if pos.IsDraw() {
			t.Errorf("%s: draw after Undo", b)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	for _, b := range backends {
		pos := mustNew(t, b, board.StartFEN)
		start := pos.FEN()
		playAll(t, pos, "e2e4")

		clone := pos.Clone()
		playAll(t, clone, "e7e5", "g1f3")

		if pos.FEN() == clone.FEN() {
			t.Fatalf("%s: clone shares state with original", b)
		}
		if pos.Ply() != 1 || clone.Ply() != 2 {
			t.Errorf("%s: ply = %d/%d, want 1/2", b, pos.Ply(), clone.Ply())
		}
		pos.Undo()
		if pos.FEN() != start {
			t.Errorf("%s: Undo after cloning = %s", b, pos.FEN())
		}
	}
}

func TestContractViolationsPanic(t *testing.T) {
	expectPanic := func(t *testing.T, target error, fn func()) {
		t.Helper()
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !errors.Is(err, target) {
				t.Errorf("panic = %v, want %v", r, target)
			}
		}()
		fn()
	}

	for _, b := range backends {
		pos := mustNew(t, b, board.StartFEN)
		expectPanic(t, board.ErrIllegalMove, func() { pos.Apply(board.NewMove(board.E2, board.E5)) })
		expectPanic(t, board.ErrNoHistory, func() { pos.Undo() })

		err := board.Play(pos, board.NewMove(board.E1, board.E2))
		if !errors.Is(err, board.ErrIllegalMove) {
			t.Errorf("%s: Play(e1e2) = %v, want ErrIllegalMove", b, err)
		}
	}
}

func TestInvalidFEN(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQ1BNR w KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		// Black is in check with White to move.
		"4k3/8/8/8/8/8/4Q3/4K3 w - - 0 1",
		"4k3/8/8/8/8/8/8/r3K3 b - - 0 1",
		// White may castle kingside but has no rook.
		"4k3/8/8/8/8/8/8/4K3 w K - 0 1",
		"4k3/8/8/8/8/8/4P3/4K3 w - - 300 1",
	}
	for _, b := range backends {
		for _, fen := range bad {
			if _, err := New(b, fen); err == nil {
				t.Errorf("%s: New(%q) succeeded", b, fen)
			}
		}
	}
}

func TestParseBackend(t *testing.T) {
	tests := map[string]Backend{"": Dragon, "dragon": Dragon, "NOTNIL": Notnil, "chess": Notnil}
	for in, want := range tests {
		got, err := ParseBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseBackend(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseBackend("stockfish"); err == nil {
		t.Error("ParseBackend(stockfish) succeeded")
	}
}
