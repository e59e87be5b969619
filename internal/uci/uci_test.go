package uci

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
)

func run(t *testing.T, backend rules.Backend, script ...string) []string {
	t.Helper()
	var out bytes.Buffer
	u := New(engine.Config{MaxDepth: 2}, backend, true, strings.NewReader(strings.Join(script, "\n")+"\n"), &out)
	if err := u.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func bestMoves(lines []string) []string {
	var moves []string
	for _, l := range lines {
		if strings.HasPrefix(l, "bestmove ") {
			moves = append(moves, strings.TrimPrefix(l, "bestmove "))
		}
	}
	return moves
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if strings.Contains(l, want) {
			return true
		}
	}
	return false
}

func TestHandshake(t *testing.T) {
	lines := run(t, rules.Dragon, "uci", "isready", "quit")
	for _, want := range []string{"id name chessbot", "option name Depth type spin default 2", "option name Rules type combo default dragon", "uciok", "readyok"} {
		if !contains(lines, want) {
			t.Errorf("output missing %q:\n%s", want, strings.Join(lines, "\n"))
		}
	}
}

func TestGoPlaysLegalMove(t *testing.T) {
	for _, b := range []rules.Backend{rules.Dragon, rules.Notnil} {
		lines := run(t, b, "position startpos moves e2e4 e7e5", "go depth 2")
		moves := bestMoves(lines)
		if len(moves) != 1 {
			t.Fatalf("%s: bestmove lines %v", b, moves)
		}

		pos, err := rules.New(b, "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2")
		if err != nil {
			t.Fatal(err)
		}
		m, err := board.ParseMove(moves[0])
		if err != nil || !board.HasMove(pos, m) {
			t.Errorf("%s: bestmove %s is not legal", b, moves[0])
		}
		if !contains(lines, "info depth 1 ") || !contains(lines, "info depth 2 ") {
			t.Errorf("%s: missing info lines:\n%s", b, strings.Join(lines, "\n"))
		}
	}
}

func TestGoFindsMate(t *testing.T) {
	lines := run(t, rules.Dragon, "position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", "go depth 2", "stop")
	if moves := bestMoves(lines); len(moves) != 1 || moves[0] != "a1a8" {
		t.Errorf("bestmove %v, want a1a8", moves)
	}
	if !contains(lines, "score cp 100000") {
		t.Errorf("no mate score in:\n%s", strings.Join(lines, "\n"))
	}
}

func TestGoTerminal(t *testing.T) {
	lines := run(t, rules.Notnil, "position fen 7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", "go depth 3")
	if moves := bestMoves(lines); len(moves) != 1 || moves[0] != "0000" {
		t.Errorf("bestmove %v, want 0000", moves)
	}
}

func TestGoWithClock(t *testing.T) {
	lines := run(t, rules.Dragon, "position startpos", "go wtime 2000 btime 2000 winc 100 binc 100")
	if len(bestMoves(lines)) != 1 {
		t.Errorf("output:\n%s", strings.Join(lines, "\n"))
	}
	// 2000/4 + 90 = 590ms
	if !contains(lines, "info string time_allocated=590ms") {
		t.Errorf("time allocation missing:\n%s", strings.Join(lines, "\n"))
	}
}

func TestSetOption(t *testing.T) {
	lines := run(t, rules.Dragon,
		"setoption name Rules value notnil",
		"setoption name Depth value 1",
		"setoption name Positional value false",
		"setoption name Depth value 99",
		"position startpos",
		"go",
	)
	if contains(lines, "info depth 2") {
		t.Errorf("searched past depth 1:\n%s", strings.Join(lines, "\n"))
	}
	if !contains(lines, "info string Invalid depth: 99") {
		t.Errorf("bad depth accepted:\n%s", strings.Join(lines, "\n"))
	}
	if len(bestMoves(lines)) != 1 {
		t.Errorf("no bestmove:\n%s", strings.Join(lines, "\n"))
	}
}

func TestPositionErrors(t *testing.T) {
	lines := run(t, rules.Dragon,
		"position fen 8/8/8/8 w - - 0 1",
		"position startpos moves e2e4 e2e4",
		"d",
	)
	if !contains(lines, "info string Invalid FEN") || !contains(lines, "info string Invalid move: e2e4") {
		t.Errorf("output:\n%s", strings.Join(lines, "\n"))
	}
	// A rejected position leaves the previous one in place.
	if !contains(lines, "Fen: "+rules.NewStart(rules.Dragon).FEN()) {
		t.Errorf("position changed:\n%s", strings.Join(lines, "\n"))
	}
}

func TestImpossiblePositionKeepsRunning(t *testing.T) {
	for _, b := range []rules.Backend{rules.Dragon, rules.Notnil} {
		lines := run(t, b,
			"position fen 4k3/8/8/8/8/8/4Q3/4K3 w - - 0 1",
			"go depth 2",
			"position fen 4k3/8/8/8/8/8/8/4K3 w K - 0 1",
			"isready",
		)
		if !contains(lines, "info string Invalid FEN") {
			t.Errorf("%s: position accepted:\n%s", b, strings.Join(lines, "\n"))
		}
		// The search runs on the previous position, the start position.
		moves := bestMoves(lines)
		if len(moves) != 1 || moves[0] == "0000" || moves[0] == "e2e8" {
			t.Errorf("%s: bestmove %v", b, moves)
		}
		if !contains(lines, "readyok") {
			t.Errorf("%s: no readyok after the rejected positions", b)
		}
	}
}

func TestPerft(t *testing.T) {
	lines := run(t, rules.Dragon, "perft 2")
	if !contains(lines, "Nodes: 400") || !contains(lines, "e2e4: 20") {
		t.Errorf("output:\n%s", strings.Join(lines, "\n"))
	}
}

func TestDisplay(t *testing.T) {
	lines := run(t, rules.Dragon, "position startpos moves e2e4", "d")
	if !contains(lines, "| r | n | b | q | k | b | n | r | 8") || !contains(lines, "|   |   |   |   | P |   |   |   | 4") {
		t.Errorf("board:\n%s", strings.Join(lines, "\n"))
	}
}

func TestParseGoOptions(t *testing.T) {
	tests := []struct {
		args  []string
		us    board.Color
		depth int
		time  time.Duration
	}{
		{[]string{"depth", "4"}, board.White, 4, 0},
		{[]string{"movetime", "250", "wtime", "9000"}, board.White, 0, 250 * time.Millisecond},
		{[]string{"wtime", "4000", "btime", "8000"}, board.Black, 0, 2 * time.Second},
		{[]string{"wtime", "3000", "btime", "3000", "movestogo", "10"}, board.White, 0, 300 * time.Millisecond},
		{[]string{"infinite", "wtime", "3000"}, board.White, 0, 0},
		{[]string{"ponder", "depth", "3", "nodes", "1000"}, board.White, 3, 0},
	}
	for _, tt := range tests {
		limits := ParseGoOptions(tt.args).Limits(tt.us)
		if limits.Depth != tt.depth || limits.MoveTime != tt.time {
			t.Errorf("%v: got %+v, want depth %d time %v", tt.args, limits, tt.depth, tt.time)
		}
	}
}
