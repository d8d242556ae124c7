// Package instance bundles the per-process shared state every component
// needs a handle to: the tunables snapshot store, the seeded random source,
// and the central logger. Grounded on the teacher's hardware/instance
// package, which bundles the equivalent per-VCS-instance state
// (preferences, random source) so that more than one instance can run in
// parallel without global variables.
package instance

import (
	"github.com/cxlab/cxdriver/logger"
	"github.com/cxlab/cxdriver/random"
	"github.com/cxlab/cxdriver/tunables"
)

// Instance is the shared handle passed to every component: scheduler,
// trial interpreter, trajectory engine, fixation engine, and so on.
type Instance struct {
	Tunables *tunables.Store
	Random   *random.Random
	Log      *logger.Logger
}

// NewInstance builds an Instance with default tunables, a random source
// seeded from ticks, and a logger with the given ring-buffer capacity.
func NewInstance(ticks random.TickSource, logCapacity int) *Instance {
	return &Instance{
		Tunables: tunables.NewStore(),
		Random:   random.NewRandom(ticks),
		Log:      logger.NewLogger(logCapacity),
	}
}

// Normalise puts the instance into a known default state: zero-seeded
// random draws and factory-default tunables. Used by regression tests that
// must reproduce byte-identical output across runs, matching the teacher's
// Instance.Normalise used for the same purpose.
func (ins *Instance) Normalise() {
	ins.Random.ZeroSeed = true
	ins.Tunables.Publish(tunables.Defaults())
}
