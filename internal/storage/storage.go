package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Storage keys
const (
	keyPreferences = "preferences"
	keyStats       = "stats"
	prefixGame     = "game/"
	keyGameSeq     = "seq/game"
)

// PlayerColor represents which color the human plays
type PlayerColor int

const (
	ColorWhite PlayerColor = iota
	ColorBlack
)

// String returns "white" or "black".
func (c PlayerColor) String() string {
	if c == ColorBlack {
		return "black"
	}
	return "white"
}

// UserPreferences stores user settings
type UserPreferences struct {
	Username    string      `json:"username"`
	Depth       int         `json:"depth"`
	PlayerColor PlayerColor `json:"player_color"`
	Rules       string      `json:"rules"`
	Positional  bool        `json:"positional"`
	LastPlayed  time.Time   `json:"last_played"`
}

// DefaultPreferences returns default user preferences
func DefaultPreferences() *UserPreferences {
	return &UserPreferences{
		Username:    "Player",
		Depth:       3,
		PlayerColor: ColorWhite,
		Rules:       "notnil",
		Positional:  true,
		LastPlayed:  time.Now(),
	}
}

// GameStats stores game statistics
type GameStats struct {
	GamesPlayed      int            `json:"games_played"`
	Wins             int            `json:"wins"`
	Losses           int            `json:"losses"`
	Draws            int            `json:"draws"`
	WinsByDepth      map[string]int `json:"wins_by_depth"`
	WinsByColor      map[string]int `json:"wins_by_color"`
	TotalPlayTime    time.Duration  `json:"total_play_time"`
	LongestWinStreak int            `json:"longest_win_streak"`
	CurrentStreak    int            `json:"current_streak"`
}

// NewGameStats returns empty game statistics
func NewGameStats() *GameStats {
	return &GameStats{
		WinsByDepth: make(map[string]int),
		WinsByColor: make(map[string]int),
	}
}

// GetWinRate returns the win rate as a percentage (0-100)
func (s *GameStats) GetWinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed) * 100
}

// GameResult represents the result of a completed game, seen from the
// human player's side.
type GameResult struct {
	Won         bool          `json:"won"`
	Draw        bool          `json:"draw"`
	Reason      string        `json:"reason"` // checkmate, stalemate, draw
	Depth       int           `json:"depth"`
	PlayerColor PlayerColor   `json:"player_color"`
	Moves       []string      `json:"moves"`
	FinalFEN    string        `json:"final_fen"`
	Duration    time.Duration `json:"duration"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Storage wraps BadgerDB for persistent storage
type Storage struct {
	db  *badger.DB
	seq *badger.Sequence // tie-breaker for games finished at the same instant
	now func() time.Time
}

// NewStorage opens the database in the default data directory.
func NewStorage() (*Storage, error) {
	return Open("")
}

// Open opens (or creates) the database in dir. An empty dir selects the
// platform data directory.
func Open(dir string) (*Storage, error) {
	dbDir, err := GetDatabaseDir(dir)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbDir, err)
	}

	seq, err := db.GetSequence([]byte(keyGameSeq), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("game sequence: %w", err)
	}

	return &Storage{db: db, seq: seq, now: time.Now}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			s.db.Close()
			return err
		}
	}
	return s.db.Close()
}

// SavePreferences saves user preferences
func (s *Storage) SavePreferences(prefs *UserPreferences) error {
	prefs.LastPlayed = s.now()

	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPreferences), data)
	})
}

// LoadPreferences loads user preferences, returns defaults if not found
func (s *Storage) LoadPreferences() (*UserPreferences, error) {
	prefs := DefaultPreferences()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyPreferences, prefs)
	})
	return prefs, err
}

// LoadStats loads game statistics, returns empty stats if not found
func (s *Storage) LoadStats() (*GameStats, error) {
	stats := NewGameStats()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyStats, stats)
	})
	return stats, err
}

// RecordGame stores a finished game and updates the statistics in the same
// transaction.
func (s *Storage) RecordGame(result GameResult) error {
	if result.FinishedAt.IsZero() {
		result.FinishedAt = s.now()
	}

	n, err := s.seq.Next()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		stats := NewGameStats()
		if err := getJSON(txn, keyStats, stats); err != nil {
			return err
		}
		stats.apply(result)

		if err := setJSON(txn, []byte(keyStats), stats); err != nil {
			return err
		}
		return setJSON(txn, gameKey(result.FinishedAt, n), result)
	})
}

func (s *GameStats) apply(result GameResult) {
	s.GamesPlayed++
	s.TotalPlayTime += result.Duration

	switch {
	case result.Draw:
		s.Draws++
		s.CurrentStreak = 0
	case result.Won:
		s.Wins++
		s.CurrentStreak++
		if s.CurrentStreak > s.LongestWinStreak {
			s.LongestWinStreak = s.CurrentStreak
		}
		s.WinsByDepth[strconv.Itoa(result.Depth)]++
		s.WinsByColor[result.PlayerColor.String()]++
	default:
		s.Losses++
		s.CurrentStreak = 0
	}
}

// RecentGames returns up to limit recorded games, newest first. A limit of
// 0 returns all of them.
func (s *Storage) RecentGames(limit int) ([]GameResult, error) {
	var games []GameResult

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixGame)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the largest key under the prefix.
		seek := append([]byte(prefixGame), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			var g GameResult
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &g)
			}); err != nil {
				return err
			}
			games = append(games, g)
			if limit > 0 && len(games) == limit {
				break
			}
		}
		return nil
	})

	return games, err
}

// gameKey orders games by finish time, then by sequence number. Big-endian
// integers sort bytewise in numeric order.
func gameKey(t time.Time, n uint64) []byte {
	key := make([]byte, len(prefixGame)+16)
	copy(key, prefixGame)
	binary.BigEndian.PutUint64(key[len(prefixGame):], uint64(t.UnixNano()))
	binary.BigEndian.PutUint64(key[len(prefixGame)+8:], n)
	return key
}

// getJSON decodes the value under key into v. A missing key leaves v as is.
func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
