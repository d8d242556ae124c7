// Package diagnostics provides operator-facing instrumentation that sits
// outside the real-time control path: a live HTTP stats dashboard and an
// on-demand structure dump for a trial that aborted in a way the trial
// interpreter itself can't explain.
//
// Grounded on the teacher's coprocessor/developer/profiling.Stats load
// tracker for the cycle/frame/average accounting shape, and on the
// teacher's go.mod, which already carries go-echarts/statsview and
// bradleyjkemp/memviz as dependencies.
package diagnostics

// Load tracks a per-tick duration against a rolling average and a running
// maximum, the same frame/average/max accounting shape as the teacher's
// profiling.Load.
type Load struct {
	TickNs    float64
	AverageNs float64
	MaxNs     float64

	count float64
	total float64
}

// Observe records one tick's duration in nanoseconds.
func (l *Load) Observe(ns float64) {
	l.TickNs = ns
	l.count++
	l.total += ns
	l.AverageNs = l.total / l.count
	if ns > l.MaxNs {
		l.MaxNs = ns
	}
}

// Reset clears the accumulated load statistics.
func (l *Load) Reset() {
	*l = Load{}
}

// Snapshot is the set of values the stats dashboard polls.
type Snapshot struct {
	ScanLoad     Load
	DisplayLoad  Load
	RecordQueued int
	Mode         string
}

// Source supplies the current Snapshot to the dashboard on each poll.
type Source interface {
	DiagnosticsSnapshot() Snapshot
}
