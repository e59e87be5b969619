package bench

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
)

func TestRun(t *testing.T) {
	opts := Options{Rules: rules.Dragon, Limits: engine.SearchLimits{Depth: 2}, Concurrency: 4}
	entries, err := Run(context.Background(), Positions, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(entries) != len(Positions) {
		t.Fatalf("%d entries for %d positions", len(entries), len(Positions))
	}

	for i, e := range entries {
		if e.FEN != Positions[i] {
			t.Errorf("entry %d is for %s", i, e.FEN)
		}
		if e.Depth != 2 || e.Nodes == 0 {
			t.Errorf("entry %d: depth %d, %d nodes", i, e.Depth, e.Nodes)
		}
		pos, err := rules.New(rules.Dragon, e.FEN)
		if err != nil {
			t.Fatal(err)
		}
		m, err := board.ParseMove(e.Move)
		if err != nil || !board.HasMove(pos, m) {
			t.Errorf("entry %d: %s is not legal", i, e.Move)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	fens := Positions[:4]
	serial, err := Run(context.Background(), fens, Options{Limits: engine.SearchLimits{Depth: 3}, Concurrency: 1})
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Run(context.Background(), fens, Options{Limits: engine.SearchLimits{Depth: 3}, Concurrency: 4})
	if err != nil {
		t.Fatal(err)
	}
	for i := range fens {
		a, b := serial[i], parallel[i]
		if a.Move != b.Move || a.Score != b.Score || a.Nodes != b.Nodes || a.Cutoffs != b.Cutoffs {
			t.Errorf("position %d: serial %+v, parallel %+v", i, a, b)
		}
	}
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), []string{board.StartFEN, "not a fen"}, Options{Limits: engine.SearchLimits{Depth: 1}})
	if err == nil {
		t.Error("Run accepted an invalid FEN")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Positions, Options{Limits: engine.SearchLimits{Depth: 1}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with a cancelled context = %v", err)
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize([]Entry{
		{Nodes: 1500, Elapsed: time.Second},
		{Nodes: 1500, Elapsed: 2 * time.Second},
	})
	if sum.Positions != 2 || sum.Nodes != 3000 || sum.Elapsed != 3*time.Second {
		t.Errorf("summary %+v", sum)
	}
	if sum.NPS() != 1000 {
		t.Errorf("NPS = %d", sum.NPS())
	}
	if (Summary{}).NPS() != 0 {
		t.Error("NPS of an empty summary")
	}
}
