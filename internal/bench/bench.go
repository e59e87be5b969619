// Package bench runs fixed searches over a set of positions and reports
// what the engine found in each.
package bench

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
)

// Positions are the standard bench positions used by many chess engines.
var Positions = []string{
	board.StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
	"r3k2r/1bp1qpb1/p1np1np1/4p2p/2P1P3/1PN2N1P/PB1PQPB1/R3K2R w KQkq - 0 1",
	"2kr3r/pbpn1pq1/1p2pn1p/3p2p1/2PP4/P1N1P1P1/1PQ1NPBP/R4RK1 w - - 0 1",
	"r2qk2r/ppp1bppp/2n1bn2/3pp3/8/2NPBNP1/PPP1PPBP/R2QK2R w KQkq - 0 1",
	"r1bq1rk1/ppp2ppp/2nb1n2/3pp3/2B1P3/2NP1N2/PPP2PPP/R1BQ1RK1 w - - 0 1",
}

// Options configures a bench run.
type Options struct {
	Rules       rules.Backend
	Engine      engine.Config
	Limits      engine.SearchLimits
	Concurrency int // 0 = GOMAXPROCS
}

// Entry is the result for one position.
type Entry struct {
	FEN     string        `json:"fen"`
	Move    string        `json:"move"`
	Score   int           `json:"score"`
	Depth   int           `json:"depth"`
	Nodes   uint64        `json:"nodes"`
	Cutoffs uint64        `json:"cutoffs"`
	Elapsed time.Duration `json:"elapsed"`
}

// Summary totals a set of entries.
type Summary struct {
	Positions int
	Nodes     uint64
	Elapsed   time.Duration // sum over positions, not wall time
}

// NPS returns nodes per second over the summed search time.
func (s Summary) NPS() uint64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return uint64(float64(s.Nodes) / s.Elapsed.Seconds())
}

// Summarize adds up the entries.
func Summarize(entries []Entry) Summary {
	sum := Summary{Positions: len(entries)}
	for _, e := range entries {
		sum.Nodes += e.Nodes
		sum.Elapsed += e.Elapsed
	}
	return sum
}

// Run searches every FEN on its own position, several at a time. Each search
// is single-threaded; concurrency only comes from running positions side by
// side. Entries are returned in the order of fens. The first invalid FEN or
// a cancelled context stops the run.
func Run(ctx context.Context, fens []string, opts Options) ([]Entry, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	entries := make([]Entry, len(fens))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, fen := range fens {
		i, fen := i, fen
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			pos, err := rules.New(opts.Rules, fen)
			if err != nil {
				return fmt.Errorf("position %d: %w", i+1, err)
			}

			res := engine.New(opts.Engine).Think(pos, opts.Limits)
			entries[i] = Entry{
				FEN:     fen,
				Move:    res.Move.String(),
				Score:   res.Score,
				Depth:   res.Depth,
				Nodes:   res.Nodes,
				Cutoffs: res.Cutoffs,
				Elapsed: res.Elapsed,
			}

			log.Debug().Int("position", i+1).Str("move", entries[i].Move).Int("depth", res.Depth).
				Uint64("nodes", res.Nodes).Dur("elapsed", res.Elapsed).Msg("bench-position")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
