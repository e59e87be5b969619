package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
)

func TestThink(t *testing.T) {
	for _, b := range []rules.Backend{rules.Dragon, rules.Notnil} {
		pos := rules.NewStart(b)
		before := pos.FEN()

		bot := New(engine.New(engine.Config{MaxDepth: 2}))
		clock := engine.Clock{Remaining: [2]time.Duration{time.Minute, time.Minute}}
		m, err := bot.Think(pos, clock)
		if err != nil {
			t.Fatalf("%s: Think: %v", b, err)
		}
		if !board.HasMove(pos, m) {
			t.Errorf("%s: Think returned illegal move %s", b, m)
		}
		if pos.FEN() != before {
			t.Errorf("%s: Think changed the position to %s", b, pos.FEN())
		}
	}
}

func TestThinkFindsMate(t *testing.T) {
	pos, err := rules.New(rules.Dragon, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	bot := New(engine.New(engine.Config{}))
	m, err := bot.Think(pos, engine.Clock{})
	if err != nil {
		t.Fatal(err)
	}
	if m.String() != "a1a8" {
		t.Errorf("Think = %s, want a1a8", m)
	}
}

func TestThinkGameOver(t *testing.T) {
	for _, fen := range []string{"R6k/6pp/8/8/8/8/8/K7 b - - 0 1", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"} {
		pos, err := rules.New(rules.Dragon, fen)
		if err != nil {
			t.Fatal(err)
		}
		m, err := New(engine.New(engine.Config{})).Think(pos, engine.Clock{})
		if !errors.Is(err, board.ErrNoLegalMoves) || !m.IsNull() {
			t.Errorf("%s: Think = %s, %v; want ErrNoLegalMoves", fen, m, err)
		}
	}
}
