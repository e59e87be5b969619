package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/board"
)

// DefaultMaxDepth is used when neither the config nor the limits give a depth.
const DefaultMaxDepth = 3

// Config is the fixed configuration of an engine.
type Config struct {
	MaxDepth   int           // Deepest iteration (0 = DefaultMaxDepth)
	TimeBudget time.Duration // Default time per think (0 = no limit)
	Evaluator  Evaluator     // nil = DefaultEvaluator()
}

// SearchInfo contains information about a completed iteration.
type SearchInfo struct {
	Depth int
	Score int // From the side to move's point of view
	Nodes uint64
	Time  time.Duration
	Move  board.Move
}

// SearchLimits overrides the engine config for a single think.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = config)
	MoveTime time.Duration // Time budget (0 = config)
}

// Result is the outcome of a think.
type Result struct {
	Move    board.Move // NoMove if the root had no legal moves
	Score   int        // From the side to move's point of view
	Depth   int        // Deepest completed iteration
	Nodes   uint64
	Cutoffs uint64
	Elapsed time.Duration
}

// Difficulty is a named preset of search limits offered to players.
type Difficulty int

const (
	Easy   Difficulty = iota // 2 ply, 500ms
	Medium                   // 3 ply, 2s
	Hard                     // 5 ply, 5s
)

// ErrUnknownDifficulty is returned for a difficulty without a preset.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 2, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 3, MoveTime: 2 * time.Second},
	Hard:   {Depth: 5, MoveTime: 5 * time.Second},
}

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

// Limits returns the search limits of the preset.
func (d Difficulty) Limits() (SearchLimits, error) {
	limits, ok := DifficultySettings[d]
	if !ok {
		return SearchLimits{}, fmt.Errorf("%w: %d", ErrUnknownDifficulty, int(d))
	}
	return limits, nil
}

// ParseDifficulty parses a difficulty name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	for d := Easy; d <= Hard; d++ {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, nil
		}
	}
	return Easy, fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

// Engine runs iterative deepening searches. An Engine holds no state
// between thinks and may be shared, but each concurrent think needs its own
// Position.
type Engine struct {
	cfg Config
	now func() time.Time

	// OnInfo is called after every completed iteration.
	OnInfo func(SearchInfo)
}

// New creates an engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = DefaultEvaluator()
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Config returns the engine's configuration with defaults filled in.
func (e *Engine) Config() Config {
	return e.cfg
}

// Search thinks with the configured depth and time budget.
func (e *Engine) Search(pos board.Position) Result {
	return e.Think(pos, SearchLimits{})
}

// Think searches pos at depths 1, 2, ... up to the depth limit and returns
// the result of the deepest completed iteration. The time budget is only
// checked between iterations: an iteration that has started always runs to
// completion, so a think can overrun its budget.
//
// pos is modified during the search and restored before Think returns.
func (e *Engine) Think(pos board.Position, limits SearchLimits) Result {
	maxDepth := e.cfg.MaxDepth
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}
	budget := e.cfg.TimeBudget
	if limits.MoveTime > 0 {
		budget = limits.MoveTime
	}

	var sel selector
	sel.reset()

	if len(pos.LegalMoves()) == 0 {
		return Result{Move: board.NoMove}
	}

	start := e.now()
	s := newSearcher(pos, e.cfg.Evaluator)
	var elapsed time.Duration

	for depth := 1; depth <= maxDepth; depth++ {
		if depth > 1 && budget > 0 && elapsed >= budget {
			log.Debug().Dur("elapsed", elapsed).Dur("budget", budget).Int("depth", depth-1).Msg("time-budget-exhausted")
			break
		}

		log.Debug().Int("plies", depth).Msg("deepening-iteratively")
		score, move := s.negamax(depth, NegInfinity, Infinity, true)
		sel.record(depth, move, score)
		elapsed = e.now().Sub(start)

		log.Debug().Int("score", score).Int("ply", depth).Str("move", move.String()).
			Uint64("nodes", s.nodes).Msg("best-val")

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth: depth,
				Score: score,
				Nodes: s.nodes,
				Time:  elapsed,
				Move:  move,
			})
		}
	}

	return Result{
		Move:    sel.move,
		Score:   sel.score,
		Depth:   sel.depth,
		Nodes:   s.nodes,
		Cutoffs: s.cutoffs,
		Elapsed: elapsed,
	}
}

// Perft counts the leaf nodes of the legal move tree to the given depth
// (for debugging move generation).
func Perft(pos board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.LegalMoves()
	if depth == 1 {
		return uint64(len(moves))
	}

	var nodes uint64
	for _, m := range moves {
		pos.Apply(m)
		nodes += Perft(pos, depth-1)
		pos.Undo()
	}
	return nodes
}

// Divide runs perft for each root move separately.
func Divide(pos board.Position, depth int) map[board.Move]uint64 {
	result := make(map[board.Move]uint64)
	if depth < 1 {
		return result
	}
	for _, m := range pos.LegalMoves() {
		pos.Apply(m)
		result[m] = Perft(pos, depth-1)
		pos.Undo()
	}
	return result
}
