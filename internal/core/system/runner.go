package system

import (
	"context"
	"reflect"
	"slices"
	"time"
)

// SystemStats is the execution record of one registered system.
type SystemStats struct {
	Name  string
	Phase Phase
	Runs  int64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	Last  time.Duration
	Total time.Duration
}

type entry struct {
	sys   System
	stats SystemStats
}

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	entries []*entry
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		entries: make([]*entry, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.entries = append(r.entries, &entry{
		sys:   s,
		stats: SystemStats{Name: t.Name(), Phase: s.Phase(), Min: time.Duration(1<<63 - 1)},
	})
	r.sorted = false
}

func (r *Runner) Len() int { return len(r.entries) }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.entries {
		e.run(dt)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.entries {
		if e.stats.Phase == phase {
			e.run(dt)
		}
	}
}

// Run ticks every interval with the measured elapsed time until ctx is done.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Tick(now.Sub(last))
			last = now
		}
	}
}

// Stats returns a snapshot in execution order.
func (r *Runner) Stats() []SystemStats {
	r.ensureSorted()
	out := make([]SystemStats, len(r.entries))
	for i, e := range r.entries {
		s := e.stats
		if s.Runs == 0 {
			s.Min = 0
		} else {
			s.Avg = s.Total / time.Duration(s.Runs)
		}
		out[i] = s
	}
	return out
}

func (e *entry) run(dt time.Duration) {
	start := time.Now()
	e.sys.Update(dt)
	d := time.Since(start)

	s := &e.stats
	s.Runs++
	s.Last = d
	s.Total += d
	s.Min = min(s.Min, d)
	s.Max = max(s.Max, d)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		slices.SortStableFunc(r.entries, func(a, b *entry) int {
			return int(a.stats.Phase) - int(b.stats.Phase)
		})
		r.sorted = true
	}
}
