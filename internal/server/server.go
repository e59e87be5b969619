// Package server exposes opponent sessions over a WebSocket and the stored
// preferences and statistics over a small JSON API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/opponent"
	"github.com/hailam/chessbot/internal/rules"
	"github.com/hailam/chessbot/internal/storage"
)

const defaultRecentGames = 20

// Config holds the session defaults used when no preferences are stored.
type Config struct {
	Rules      rules.Backend
	Depth      int
	Positional bool
}

// Server routes HTTP and WebSocket traffic. Each WebSocket connection plays
// its own game.
type Server struct {
	cfg          Config
	store        *storage.Storage // may be nil
	router       chi.Router
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type pgnPayload struct {
	PGN string `json:"pgn"`
}

// New builds the router. store may be nil, in which case finished games are
// not recorded and the /api routes answer 503.
func New(cfg Config, store *storage.Storage) *Server {
	s := &Server{
		cfg:          cfg,
		store:        store,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		pingInterval: wsIdlePingInterval,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Get("/ws", s.serveWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireStore)
		r.Get("/stats", s.getStats)
		r.Get("/games", s.getGames)
		r.Get("/preferences", s.getPreferences)
		r.Put("/preferences", s.putPreferences)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage disabled"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.LoadStats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "win_rate": stats.GetWinRate()})
}

func (s *Server) getGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentGames
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	games, err := s.store.RecentGames(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if games == nil {
		games = []storage.GameResult{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.LoadPreferences()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs storage.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if prefs.Depth < opponent.MinDepth || prefs.Depth > opponent.MaxDepth {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": opponent.ErrInvalidDepth.Error()})
		return
	}
	if _, err := rules.ParseBackend(prefs.Rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.SavePreferences(&prefs); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// sessionOptions merges the stored preferences over the server defaults.
// It also reports whether the player prefers Black.
func (s *Server) sessionOptions() (opponent.Options, bool) {
	opts := opponent.Options{
		Rules:     s.cfg.Rules,
		Depth:     s.cfg.Depth,
		Evaluator: engine.Classical{Positional: s.cfg.Positional},
	}
	if s.store == nil {
		return opts, false
	}
	opts.Recorder = s.store

	prefs, err := s.store.LoadPreferences()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load preferences, using defaults")
		return opts, false
	}
	if prefs.Depth >= opponent.MinDepth && prefs.Depth <= opponent.MaxDepth {
		opts.Depth = prefs.Depth
	}
	if b, err := rules.ParseBackend(prefs.Rules); err == nil {
		opts.Rules = b
	}
	opts.Evaluator = engine.Classical{Positional: prefs.Positional}
	return opts, prefs.PlayerColor == storage.ColorBlack
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	opts, playBlack := s.sessionOptions()
	session, err := opponent.NewSession(opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	reqID := middleware.GetReqID(r.Context())
	log.Info().Str("request_id", reqID).Str("remote", r.RemoteAddr).Msg("session-opened")

	send := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, send, s.pingInterval); err != nil {
			log.Debug().Err(err).Str("request_id", reqID).Msg("ws write failed")
		}
	}()
	defer func() {
		close(send)
		<-done
		log.Info().Str("request_id", reqID).Msg("session-closed")
	}()
	push := func(msg []byte) {
		select {
		case send <- msg:
		case <-done:
		}
	}

	if playBlack {
		if err := session.NewGame(true); err != nil {
			push(errorMessage(err))
		}
	}
	push(statusMessage(session))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			push(errorMessage(errBadMessage))
			continue
		}
		if reply := handleMessage(session, msg); reply != nil {
			push(reply)
		}
	}
}

var (
	errBadMessage  = errors.New("malformed message")
	errUnknownType = errors.New("unknown message type")
)

// handleMessage applies one client message to the session and returns the
// encoded reply, or nil when no reply is due.
func handleMessage(session *opponent.Session, msg wsMessage) []byte {
	var err error
	switch msg.Type {
	case "ping", "pong":
		return nil
	case "status":
	case "new_game":
		var p struct {
			EngineWhite bool `json:"engine_white"`
		}
		if len(msg.Payload) > 0 {
			err = decodePayload(msg.Payload, &p)
		}
		if err == nil {
			err = session.NewGame(p.EngineWhite)
		}
	case "move":
		var p struct {
			Move string `json:"move"`
		}
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = session.Play(p.Move)
		}
	case "engine_move":
		err = session.EngineMove()
	case "takeback":
		err = session.Takeback()
	case "load_fen":
		var p struct {
			FEN string `json:"fen"`
		}
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = session.LoadFEN(p.FEN)
		}
	case "set_depth":
		var p struct {
			Depth int `json:"depth"`
		}
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = session.SetDepth(p.Depth)
		}
	case "set_difficulty":
		var p struct {
			Difficulty string `json:"difficulty"`
		}
		if err = decodePayload(msg.Payload, &p); err == nil {
			var d engine.Difficulty
			if d, err = engine.ParseDifficulty(p.Difficulty); err == nil {
				err = session.SetDifficulty(d)
			}
		}
	case "switch_sides":
		err = session.SwitchSides()
	case "pgn":
		pgn, err := session.PGN()
		if err != nil {
			return errorMessage(err)
		}
		return mustMarshal(wsMessage{Type: "pgn", Payload: mustMarshal(pgnPayload{PGN: pgn})})
	default:
		err = errUnknownType
	}
	if err != nil {
		return errorMessage(err)
	}
	return statusMessage(session)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadMessage
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadMessage
	}
	return nil
}

func statusMessage(session *opponent.Session) []byte {
	return mustMarshal(wsMessage{Type: "status", Payload: mustMarshal(session.Status())})
}

func errorMessage(err error) []byte {
	return mustMarshal(wsMessage{Type: "error", Payload: mustMarshal(errorPayload{
		Error: err.Error(),
		Code:  errorCode(err),
	})})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, board.ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, board.ErrNoHistory):
		return "no_history"
	case errors.Is(err, board.ErrNoLegalMoves), errors.Is(err, opponent.ErrGameOver):
		return "game_over"
	case errors.Is(err, opponent.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, opponent.ErrInvalidDepth):
		return "invalid_depth"
	case errors.Is(err, engine.ErrUnknownDifficulty):
		return "invalid_difficulty"
	case errors.Is(err, errBadMessage), errors.Is(err, errUnknownType):
		return "bad_message"
	}
	return "rejected"
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
