package upload

import (
	"math"
	"sync"
)

// maxInFlight is the highest percentage reported before every transfer has
// settled.
const maxInFlight = 99

// Progress is an aggregate progress report for one commit.
type Progress struct {
	// Percent is the mean completion of all transfers, 0-100.
	Percent int
	// Determinate is false until some transfer reports byte-level progress;
	// until then Percent only moves as transfers settle.
	Determinate bool
	Settled     int
	Total       int
}

// Done reports whether every transfer has settled.
func (p Progress) Done() bool {
	return p.Settled == p.Total
}

// Aggregate returns the mean of fractions as a percentage, clamped to 99
// unless settled is true.
func Aggregate(fractions []float64, settled bool) int {
	if len(fractions) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fractions {
		sum += math.Max(0, math.Min(1, f))
	}
	// scale before dividing so j of k settled transfers floors to exactly 100*j/k
	pct := int(math.Floor(sum * 100 / float64(len(fractions))))
	if !settled && pct > maxInFlight {
		pct = maxInFlight
	}
	return pct
}

// tracker accumulates per-transfer progress and forwards aggregates to report.
type tracker struct {
	mu          sync.Mutex
	fractions   []float64
	done        []bool
	settled     int
	determinate bool
	report      func(Progress)
}

func newTracker(n int, report func(Progress)) *tracker {
	return &tracker{
		fractions: make([]float64, n),
		done:      make([]bool, n),
		report:    report,
	}
}

// callback returns the ProgressFunc handed to the sink for transfer i.
func (t *tracker) callback(i int) ProgressFunc {
	return func(sent, total int64) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.done[i] || total <= 0 {
			return
		}
		t.determinate = true
		t.fractions[i] = float64(sent) / float64(total)
		t.emitLocked(false)
	}
}

// settle marks transfer i as finished, successfully or not.
func (t *tracker) settle(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done[i] {
		return
	}
	t.done[i] = true
	t.fractions[i] = 1
	t.settled++
	t.emitLocked(false)
}

// finish emits the terminal report once all transfers have settled.
func (t *tracker) finish(allSucceeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(allSucceeded)
}

// start emits the initial 0% report.
func (t *tracker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(false)
}

func (t *tracker) progressLocked(final bool) Progress {
	return Progress{
		Percent:     Aggregate(t.fractions, final),
		Determinate: t.determinate,
		Settled:     t.settled,
		Total:       len(t.fractions),
	}
}

func (t *tracker) emitLocked(final bool) {
	if t.report != nil {
		t.report(t.progressLocked(final))
	}
}
