package budget

import (
	"sync"
	"time"
)

// Guard is the process-wide token circuit breaker. It tracks cumulative token
// consumption against a daily ceiling and, once tripped, denies every
// subsequent charge for the remainder of the process lifetime.
//
// The guard never returns an error: it is a pure gate queried before and after
// each node executes. Charges from concurrently processed entities serialize
// through the single shared counter.
type Guard struct {
	mu      sync.Mutex
	ceiling int64
	total   int64
	tripped bool
	ledger  *Ledger
	day     string
}

// NewGuard creates a Guard with the given daily token ceiling. If ledger is
// non-nil, today's persisted usage is loaded so the ceiling survives restarts.
// The ceiling is read once here; live changes are not observed mid-run.
func NewGuard(ceiling int64, ledger *Ledger) (*Guard, error) {
	g := &Guard{
		ceiling: ceiling,
		ledger:  ledger,
		day:     today(),
	}

	if ledger != nil {
		used, err := ledger.Load(g.day)
		if err != nil {
			return nil, err
		}
		g.total = used
		if g.total > g.ceiling {
			g.tripped = true
		}
	}

	return g, nil
}

// Charge records n tokens against the budget and reports whether the charge
// was allowed. A charge that pushes the total over the ceiling trips the
// guard; the tokens are still counted so the audit trail stays accurate.
// Once tripped, Charge never returns true again.
func (g *Guard) Charge(n int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tripped {
		g.total += n
		return false
	}

	g.total += n
	if g.total > g.ceiling {
		g.tripped = true
		return false
	}

	return true
}

// Allow reports whether work may proceed without recording any consumption.
// The engine calls this before dispatching each node.
func (g *Guard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.tripped
}

// Tripped reports whether the guard has denied a charge.
func (g *Guard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

// Total returns the cumulative tokens counted so far today.
func (g *Guard) Total() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// Ceiling returns the configured daily ceiling.
func (g *Guard) Ceiling() int64 {
	return g.ceiling
}

// Flush persists the current total to the ledger, if one is configured.
// Call at process exit so the daily counter survives restarts.
func (g *Guard) Flush() error {
	g.mu.Lock()
	total := g.total
	day := g.day
	g.mu.Unlock()

	if g.ledger == nil {
		return nil
	}
	return g.ledger.Save(day, total)
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
