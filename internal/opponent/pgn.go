package opponent

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/hailam/chessbot/internal/board"
)

// PGN returns the game so far in Portable Game Notation. The moves are
// replayed through notnil/chess, which renders them in SAN and appends the
// result once the game is decided.
func (s *Session) PGN() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fen, err := chess.FEN(s.startFEN)
	if err != nil {
		return "", err
	}
	game := chess.NewGame(fen)
	for _, m := range s.history {
		mv, err := chess.UCINotation{}.Decode(game.Position(), m.String())
		if err != nil {
			return "", fmt.Errorf("replay %s: %w", m, err)
		}
		if err := game.Move(mv); err != nil {
			return "", fmt.Errorf("replay %s: %w", m, err)
		}
	}

	white, black := "Player", "chessbot"
	if s.engineColor == board.White {
		white, black = black, white
	}
	game.AddTagPair("Event", "Casual game")
	game.AddTagPair("Date", s.started.Format("2006.01.02"))
	game.AddTagPair("White", white)
	game.AddTagPair("Black", black)
	if board.RepetitionKey(s.startFEN) != board.RepetitionKey(board.StartFEN) {
		game.AddTagPair("SetUp", "1")
		game.AddTagPair("FEN", s.startFEN)
	}

	return game.String(), nil
}
