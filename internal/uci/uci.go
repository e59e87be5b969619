// Package uci implements the Universal Chess Interface protocol on top of
// the bot.
package uci

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/board"
	"github.com/hailam/chessbot/internal/bot"
	"github.com/hailam/chessbot/internal/engine"
	"github.com/hailam/chessbot/internal/rules"
)

const (
	engineName   = "chessbot"
	engineAuthor = "hailam"

	maxOptionDepth = 10
)

// UCI reads commands from in and writes replies to out.
type UCI struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex // guards out

	cfg        engine.Config
	positional bool
	backend    rules.Backend
	position   board.Position

	// Closed when the running search has printed its bestmove. Only the
	// command loop touches it.
	searchDone chan struct{}
}

// New creates a protocol handler. cfg.Evaluator is replaced according to
// the Positional option.
func New(cfg engine.Config, backend rules.Backend, positional bool, in io.Reader, out io.Writer) *UCI {
	u := &UCI{
		in:         in,
		out:        out,
		cfg:        cfg,
		positional: positional,
		backend:    backend,
	}
	if u.cfg.MaxDepth <= 0 {
		u.cfg.MaxDepth = engine.DefaultMaxDepth
	}
	u.cfg.Evaluator = engine.Classical{Positional: positional}
	u.position = rules.NewStart(backend)
	return u
}

func (u *UCI) println(a ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, a...)
}

func (u *UCI) printf(format string, a ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, a...)
}

// Run processes commands until "quit" or the end of input. A search that is
// still running is waited for before Run returns.
func (u *UCI) Run() error {
	scanner := bufio.NewScanner(u.in)
	defer u.handleStop()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.println("readyok")
		case "ucinewgame":
			u.handleStop()
			u.position = rules.NewStart(u.backend)
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			return nil
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			u.handleDisplay()
		case "perft":
			u.handlePerft(args)
		default:
			log.Debug().Str("cmd", cmd).Msg("unknown uci command")
		}
	}
	return scanner.Err()
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	u.println("id name", engineName)
	u.println("id author", engineAuthor)
	u.println()
	u.printf("option name Depth type spin default %d min 1 max %d\n", u.cfg.MaxDepth, maxOptionDepth)
	u.printf("option name Positional type check default %t\n", u.positional)
	u.printf("option name Rules type combo default %s var %s var %s\n", u.backend, rules.Dragon, rules.Notnil)
	u.println("uciok")
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	moveStart := len(args)
	for i, arg := range args {
		if arg == "moves" {
			moveStart = i
			break
		}
	}

	var fen string
	switch args[0] {
	case "startpos":
		fen = board.StartFEN
	case "fen":
		fen = strings.Join(args[1:moveStart], " ")
	default:
		return
	}

	pos, err := rules.New(u.backend, fen)
	if err != nil {
		u.printf("info string Invalid FEN: %v\n", err)
		return
	}

	if moveStart < len(args) {
		for _, moveStr := range args[moveStart+1:] {
			m, err := board.ParseMove(moveStr)
			if err == nil {
				err = board.Play(pos, m)
			}
			if err != nil {
				u.printf("info string Invalid move: %s\n", moveStr)
				return
			}
		}
	}
	u.position = pos
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth    int
	MoveTime time.Duration
	Infinite bool
	Clock    engine.Clock
}

// ParseGoOptions parses "go" command arguments. Unknown tokens are skipped.
func ParseGoOptions(args []string) GoOptions {
	var opts GoOptions

	ms := func(i int) time.Duration {
		n, _ := strconv.Atoi(args[i])
		return time.Duration(n) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		hasValue := i+1 < len(args)
		switch args[i] {
		case "infinite":
			opts.Infinite = true
			continue
		case "depth":
			if hasValue {
				opts.Depth, _ = strconv.Atoi(args[i+1])
			}
		case "movetime":
			if hasValue {
				opts.MoveTime = ms(i + 1)
			}
		case "wtime":
			if hasValue {
				opts.Clock.Remaining[board.White] = ms(i + 1)
			}
		case "btime":
			if hasValue {
				opts.Clock.Remaining[board.Black] = ms(i + 1)
			}
		case "winc":
			if hasValue {
				opts.Clock.Increment[board.White] = ms(i + 1)
			}
		case "binc":
			if hasValue {
				opts.Clock.Increment[board.Black] = ms(i + 1)
			}
		case "movestogo":
			if hasValue {
				opts.Clock.MovesToGo, _ = strconv.Atoi(args[i+1])
			}
		default:
			continue
		}
		i++
	}

	return opts
}

// Limits converts the options into search limits for side us. An explicit
// movetime wins over the clock; "infinite" searches to the configured depth
// without a time limit.
func (o GoOptions) Limits(us board.Color) engine.SearchLimits {
	limits := engine.SearchLimits{Depth: o.Depth}
	switch {
	case o.Infinite:
	case o.MoveTime > 0:
		limits.MoveTime = o.MoveTime
	case !o.Clock.IsZero():
		limits.MoveTime = o.Clock.Budget(us)
	}
	return limits
}

// handleGo starts a search on a copy of the current position. Only one
// search runs at a time.
func (u *UCI) handleGo(args []string) {
	u.handleStop()

	opts := ParseGoOptions(args)
	pos := u.position.Clone()
	limits := opts.Limits(pos.SideToMove())
	if limits.MoveTime > 0 {
		u.printf("info string time_allocated=%dms\n", limits.MoveTime.Milliseconds())
	}

	eng := engine.New(u.cfg)
	eng.OnInfo = u.sendInfo
	b := bot.New(eng)

	done := make(chan struct{})
	u.searchDone = done

	go func() {
		defer close(done)

		m, err := b.ThinkWithLimits(pos, limits)
		if err != nil {
			if !errors.Is(err, board.ErrNoLegalMoves) {
				log.Error().Err(err).Msg("search failed")
			}
			// Only sent for checkmate/stalemate (no legal moves).
			u.println("bestmove 0000")
			return
		}
		u.println("bestmove", m.String())
	}()
}

// sendInfo outputs search info in UCI format. Mate scores carry no distance,
// so they are reported in centipawns like any other score.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		fmt.Sprintf("score cp %d", info.Score),
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("time %d", info.Time.Milliseconds()),
	}
	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	if !info.Move.IsNull() {
		parts = append(parts, "pv "+info.Move.String())
	}
	u.println("info", strings.Join(parts, " "))
}

// handleStop waits for the current search to finish. The engine polls its
// time budget between iterations only, so the search is not cut short.
func (u *UCI) handleStop() {
	if u.searchDone == nil {
		return
	}
	<-u.searchDone
	u.searchDone = nil
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value []string
	var target *[]string
	for _, arg := range args {
		switch arg {
		case "name":
			target = &name
		case "value":
			target = &value
		default:
			if target != nil {
				*target = append(*target, arg)
			}
		}
	}

	// Options take effect from the next "go".
	u.handleStop()

	val := strings.Join(value, " ")
	switch strings.ToLower(strings.Join(name, " ")) {
	case "depth":
		depth, err := strconv.Atoi(val)
		if err != nil || depth < 1 || depth > maxOptionDepth {
			u.printf("info string Invalid depth: %s\n", val)
			return
		}
		u.cfg.MaxDepth = depth
	case "positional":
		u.positional = strings.EqualFold(val, "true")
		u.cfg.Evaluator = engine.Classical{Positional: u.positional}
	case "rules":
		b, err := rules.ParseBackend(val)
		if err != nil {
			u.printf("info string %v\n", err)
			return
		}
		pos, err := rules.New(b, u.position.FEN())
		if err != nil {
			u.printf("info string %v\n", err)
			return
		}
		u.backend = b
		u.position = pos
	default:
		log.Debug().Strs("name", name).Msg("unknown uci option")
	}
}

// handleDisplay prints the board, rank 8 first, and its FEN.
func (u *UCI) handleDisplay() {
	var squares [64]string
	u.position.EachPiece(func(sq board.Square, p board.Piece) {
		squares[sq] = p.String()
	})

	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteString(" +---+---+---+---+---+---+---+---+\n")
		for file := 0; file < 8; file++ {
			s := squares[board.NewSquare(file, rank)]
			if s == "" {
				s = " "
			}
			sb.WriteString(" | " + s)
		}
		fmt.Fprintf(&sb, " | %d\n", rank+1)
	}
	sb.WriteString(" +---+---+---+---+---+---+---+---+\n")
	sb.WriteString("   a   b   c   d   e   f   g   h\n\n")
	fmt.Fprintf(&sb, "Fen: %s\n", u.position.FEN())
	fmt.Fprintf(&sb, "Checkers: %t", u.position.InCheck())

	u.println(sb.String())
}

// handlePerft runs a perft test, printing the node count of every root move
// first.
func (u *UCI) handlePerft(args []string) {
	u.handleStop()

	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d > 0 {
			depth = d
		}
	}

	pos := u.position.Clone()
	start := time.Now()
	divide := engine.Divide(pos, depth)
	elapsed := time.Since(start)

	moves := make([]board.Move, 0, len(divide))
	var nodes uint64
	for m, n := range divide {
		moves = append(moves, m)
		nodes += n
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].String() < moves[j].String() })
	for _, m := range moves {
		u.printf("%s: %d\n", m, divide[m])
	}

	u.println()
	u.printf("Nodes: %d\n", nodes)
	u.printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		u.printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}
