package engine

import (
	"time"

	"github.com/hailam/chessbot/internal/board"
)

const minBudget = 10 * time.Millisecond

// Clock contains the game clock as seen at the start of a think.
type Clock struct {
	Remaining [2]time.Duration // wtime, btime
	Increment [2]time.Duration // winc, binc
	MovesToGo int              // moves until next time control (0 = sudden death)
}

// IsZero reports whether no clock is running.
func (c Clock) IsZero() bool {
	return c.Remaining[board.White] == 0 && c.Remaining[board.Black] == 0
}

// Budget returns the time to spend on the next move for color us, or 0 when
// us has no clock.
//
// With a known number of moves to the next control the remaining time is
// split evenly; in sudden death a quarter of it is used. Most of the
// increment is added on top. The result never exceeds 90% of the remaining
// time. It is at least 10ms when the clock allows it.
func (c Clock) Budget(us board.Color) time.Duration {
	left := c.Remaining[us]
	if left <= 0 {
		return 0
	}

	var budget time.Duration
	if c.MovesToGo > 0 {
		budget = left / time.Duration(c.MovesToGo)
	} else {
		budget = left / 4
	}
	budget += c.Increment[us] * 9 / 10

	ceiling := max(left*9/10, time.Nanosecond)
	return max(min(budget, ceiling), min(minBudget, ceiling))
}
