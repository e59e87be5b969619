// Package opponent runs an interactive game between a human and the engine.
package opponent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
	"github.com/hailam/chessbot/internal/storage"
)

// Depth limits offered to players.
const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3

	// The engine may think for one second per ply of depth.
	timePerPly = time.Second
)

var (
	ErrGameOver     = errors.New("game is over")
	ErrNotYourTurn  = errors.New("it is the engine's turn")
	ErrInvalidDepth = fmt.Errorf("depth must be between %d and %d", MinDepth, MaxDepth)
)

// Outcome describes the state of the game.
type Outcome string

const (
	Ongoing   Outcome = "ongoing"
	Checkmate Outcome = "checkmate"
	Stalemate Outcome = "stalemate"
	Draw      Outcome = "draw" // insufficient material, repetition or fifty moves
)

// ResultRecorder receives every finished game once.
type ResultRecorder interface {
	RecordGame(result storage.GameResult) error
}

// Options configures a session.
type Options struct {
	Rules     rules.Backend
	Depth     int              // 0 = DefaultDepth
	Evaluator engine.Evaluator // nil = engine default
	Recorder  ResultRecorder   // optional
}

// Status is a snapshot of the session for clients.
type Status struct {
	FEN            string   `json:"fen"`
	SideToMove     string   `json:"side_to_move"`
	EngineColor    string   `json:"engine_color"`
	Depth          int      `json:"depth"`
	MoveTimeMs     int64    `json:"move_time_ms"`
	InCheck        bool     `json:"in_check"`
	LegalMoves     []string `json:"legal_moves"`
	History        []string `json:"history"`
	LastEngineMove string   `json:"last_engine_move,omitempty"`
	LastScore      int      `json:"last_score"`
	Outcome        Outcome  `json:"outcome"`
	Winner         string   `json:"winner,omitempty"`
}

// Session is one game against the engine. It is safe for concurrent use;
// operations are serialized.
type Session struct {
	mu sync.Mutex

	opts        Options
	eng         *engine.Engine
	pos         board.Position
	engineColor board.Color
	startFEN    string
	history     []board.Move
	depth       int
	moveTime    time.Duration

	lastMove  board.Move
	lastScore int

	started  time.Time
	recorded bool
	now      func() time.Time
}

// NewSession creates a session at the starting position with the human
// playing White.
func NewSession(opts Options) (*Session, error) {
	if opts.Depth == 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Depth < MinDepth || opts.Depth > MaxDepth {
		return nil, ErrInvalidDepth
	}

	s := &Session{
		opts:     opts,
		depth:    opts.Depth,
		moveTime: time.Duration(opts.Depth) * timePerPly,
		eng:      engine.New(engine.Config{MaxDepth: MaxDepth, Evaluator: opts.Evaluator}),
		now:      time.Now,
	}
	if err := s.reset(board.StartFEN, board.Black); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reset(fen string, engineColor board.Color) error {
	pos, err := rules.New(s.opts.Rules, fen)
	if err != nil {
		return err
	}
	s.pos = pos
	s.startFEN = pos.FEN()
	s.engineColor = engineColor
	s.history = nil
	s.lastMove = board.NoMove
	s.lastScore = 0
	s.started = s.now()
	s.recorded = false
	return nil
}

// NewGame starts over from the initial position. When engineWhite is set
// the engine plays White and moves immediately.
func (s *Session) NewGame(engineWhite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	engineColor := board.Black
	if engineWhite {
		engineColor = board.White
	}
	if err := s.reset(board.StartFEN, engineColor); err != nil {
		return err
	}
	if engineWhite {
		return s.engineMove()
	}
	return nil
}

// LoadFEN replaces the game with the given position. The engine keeps its
// color and does not move by itself.
func (s *Session) LoadFEN(fen string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset(fen, s.engineColor)
}

// Play makes the human's move, given in UCI notation, and lets the engine
// answer unless the game ended.
func (s *Session) Play(uci string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome() != Ongoing {
		return ErrGameOver
	}
	if s.pos.SideToMove() == s.engineColor {
		return ErrNotYourTurn
	}

	m, err := board.ParseMove(uci)
	if err != nil {
		return fmt.Errorf("%w: %v", board.ErrIllegalMove, err)
	}
	if err := board.Play(s.pos, m); err != nil {
		return err
	}
	s.history = append(s.history, m)

	if s.finished() {
		return nil
	}
	return s.engineMove()
}

// EngineMove makes the engine play for the side to move.
func (s *Session) EngineMove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engineMove()
}

func (s *Session) engineMove() error {
	if s.outcome() != Ongoing {
		return ErrGameOver
	}

	// The search works on a clone so the game position is never seen in a
	// half-searched state.
	think := s.pos.Clone()
	res := s.eng.Think(think, engine.SearchLimits{
		Depth:    s.depth,
		MoveTime: s.moveTime,
	})
	m, err := engine.SelectMove(think, res)
	if err != nil {
		return err
	}

	s.pos.Apply(m)
	s.history = append(s.history, m)
	s.lastMove = m
	s.lastScore = res.Score

	log.Debug().Str("move", m.String()).Int("score", res.Score).Int("depth", res.Depth).
		Uint64("nodes", res.Nodes).Dur("elapsed", res.Elapsed).Msg("engine-move")

	s.finished()
	return nil
}

// Takeback undoes moves until it is the human's turn again, at most two
// plies: the engine's reply and the human move before it.
func (s *Session) Takeback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return board.ErrNoHistory
	}
	for i := 0; i < 2 && len(s.history) > 0; i++ {
		s.pos.Undo()
		s.history = s.history[:len(s.history)-1]
		if s.pos.SideToMove() != s.engineColor {
			break
		}
	}
	s.lastMove = board.NoMove
	return nil
}

// SetDepth sets the search depth for the engine's next moves.
func (s *Session) SetDepth(depth int) error {
	if depth < MinDepth || depth > MaxDepth {
		return ErrInvalidDepth
	}
	s.mu.Lock()
	s.depth = depth
	s.moveTime = time.Duration(depth) * timePerPly
	s.mu.Unlock()
	return nil
}

// SetDifficulty replaces depth and think time with a preset.
func (s *Session) SetDifficulty(d engine.Difficulty) error {
	limits, err := d.Limits()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.depth = limits.Depth
	s.moveTime = limits.MoveTime
	s.mu.Unlock()
	return nil
}

// SwitchSides hands the side to move over to the engine, which plays it
// right away. The human takes the other color.
func (s *Session) SwitchSides() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome() != Ongoing {
		return ErrGameOver
	}
	s.engineColor = s.pos.SideToMove()
	return s.engineMove()
}

// Status returns a snapshot of the game.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		FEN:         s.pos.FEN(),
		SideToMove:  s.pos.SideToMove().String(),
		EngineColor: s.engineColor.String(),
		Depth:       s.depth,
		MoveTimeMs:  s.moveTime.Milliseconds(),
		InCheck:     s.pos.InCheck(),
		LastScore:   s.lastScore,
		Outcome:     s.outcome(),
		LegalMoves:  []string{},
		History:     []string{},
	}
	if !s.lastMove.IsNull() {
		st.LastEngineMove = s.lastMove.String()
	}
	if st.Outcome == Checkmate {
		st.Winner = s.pos.SideToMove().Other().String()
	}
	for _, m := range s.pos.LegalMoves() {
		st.LegalMoves = append(st.LegalMoves, m.String())
	}
	for _, m := range s.history {
		st.History = append(st.History, m.String())
	}
	return st
}

func (s *Session) outcome() Outcome {
	switch {
	case s.pos.IsCheckmate():
		return Checkmate
	case !s.pos.IsDraw():
		return Ongoing
	case len(s.pos.LegalMoves()) == 0:
		return Stalemate
	}
	return Draw
}

// finished reports whether the game is over and records it the first time.
func (s *Session) finished() bool {
	outcome := s.outcome()
	if outcome == Ongoing {
		return false
	}
	if s.recorded || s.opts.Recorder == nil {
		return true
	}
	s.recorded = true

	human := s.engineColor.Other()
	result := storage.GameResult{
		Draw:     outcome != Checkmate,
		Won:      outcome == Checkmate && s.pos.SideToMove() != human,
		Reason:   string(outcome),
		Depth:    s.depth,
		FinalFEN: s.pos.FEN(),
		Duration: s.now().Sub(s.started),
	}
	if human == board.Black {
		result.PlayerColor = storage.ColorBlack
	}
	for _, m := range s.history {
		result.Moves = append(result.Moves, m.String())
	}

	if err := s.opts.Recorder.RecordGame(result); err != nil {
		log.Warn().Err(err).Msg("failed to record game")
	}
	return true
}
