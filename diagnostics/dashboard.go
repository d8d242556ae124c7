package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Dashboard serves the go-echarts/statsview live runtime-stats page
// (goroutines, heap, GC pause) alongside a small JSON endpoint exposing
// the experiment-specific Snapshot from a Source, so an operator watching
// for a starved scan loop or a backed-up recording queue has one page to
// look at instead of switching between pprof and the console log.
type Dashboard struct {
	runtimeAddr  string
	snapshotAddr string
	source       Source

	viewer *statsview.Viewer
	srv    *http.Server
}

// NewDashboard builds a Dashboard. runtimeAddr serves the statsview
// runtime page (e.g. ":18066"); snapshotAddr serves the experiment
// snapshot as JSON at /diagnostics/snapshot (e.g. ":18067").
func NewDashboard(runtimeAddr, snapshotAddr string, source Source) *Dashboard {
	return &Dashboard{runtimeAddr: runtimeAddr, snapshotAddr: snapshotAddr, source: source}
}

// Start brings up both listeners. It does not block; call Stop to shut
// them down.
func (d *Dashboard) Start() {
	d.viewer = statsview.New(viewer.WithAddr(d.runtimeAddr))
	go d.viewer.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/diagnostics/snapshot", d.handleSnapshot)
	d.srv = &http.Server{Addr: d.snapshotAddr, Handler: mux}
	go d.srv.ListenAndServe()
}

func (d *Dashboard) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := d.source.DiagnosticsSnapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// Stop tears down both listeners.
func (d *Dashboard) Stop() {
	if d.viewer != nil {
		d.viewer.Stop()
	}
	if d.srv != nil {
		_ = d.srv.Shutdown(context.Background())
	}
}
