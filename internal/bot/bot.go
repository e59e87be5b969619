// Package bot is the standalone chess bot: given a position and the game
// clock it always answers with a legal move.
package bot

import (
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
)

// Bot plays moves chosen by an engine.
type Bot struct {
	eng *engine.Engine
}

// New creates a bot around eng.
func New(eng *engine.Engine) *Bot {
	return &Bot{eng: eng}
}

// Engine returns the engine the bot thinks with.
func (b *Bot) Engine() *engine.Engine {
	return b.eng
}

// Think picks a move for the side to move in pos. The time budget comes
// from the clock; a zero clock falls back to the engine's configured
// budget. It returns board.ErrNoLegalMoves if the game is already over.
func (b *Bot) Think(pos board.Position, clock engine.Clock) (board.Move, error) {
	return b.ThinkWithLimits(pos, engine.SearchLimits{
		MoveTime: clock.Budget(pos.SideToMove()),
	})
}

// ThinkWithLimits is like Think with explicit search limits.
func (b *Bot) ThinkWithLimits(pos board.Position, limits engine.SearchLimits) (board.Move, error) {
	res := b.eng.Think(pos, limits)
	m, err := engine.SelectMove(pos, res)
	if err != nil {
		return board.NoMove, err
	}
	if res.Move.IsNull() {
		log.Warn().Str("fen", pos.FEN()).Str("move", m.String()).Msg("search gave no move, playing first legal move")
	}
	log.Debug().Str("move", m.String()).Int("score", res.Score).Int("depth", res.Depth).
		Dur("elapsed", res.Elapsed).Msg("bot-move")
	return m, nil
}
