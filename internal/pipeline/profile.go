package pipeline

import (
	"runtime"
	"sync/atomic"
)

// Stats aggregates counters across many search sessions. It is safe for
// concurrent use.
type Stats struct {
	Sessions   atomic.Int64
	Cancelled  atomic.Int64
	Attempts   atomic.Int64
	Faults     atomic.Int64
	Hits       atomic.Int64
	DurationNs atomic.Int64
}

// Record adds one finished or cancelled session.
func (s *Stats) Record(r *Report) {
	if r == nil {
		return
	}
	s.Sessions.Add(1)
	if r.Cancelled {
		s.Cancelled.Add(1)
	}
	s.Attempts.Add(int64(r.Attempts))
	s.Faults.Add(int64(r.Faults))
	s.Hits.Add(int64(len(r.Hits)))
	s.DurationNs.Add(int64(r.Duration))
}

// Snapshot returns cumulative counters with durations in milliseconds,
// plus current memory figures.
func (s *Stats) Snapshot() map[string]any {
	sessions := s.Sessions.Load()
	dur := s.DurationNs.Load()
	out := map[string]any{
		"sessions":  sessions,
		"cancelled": s.Cancelled.Load(),
		"attempts":  s.Attempts.Load(),
		"faults":    s.Faults.Load(),
		"hits":      s.Hits.Load(),
		"ms_total":  dur / 1_000_000,
	}
	if sessions > 0 {
		out["ms_per_session"] = float64(dur) / 1_000_000.0 / float64(sessions)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	out["alloc_bytes"] = m.Alloc
	out["goroutines"] = runtime.NumGoroutine()
	return out
}
