package sim

import (
	"context"
	"time"

	"github.com/benchbot-data/simd/internal/monitoring"
)

// Sub-rate divisors for the master tick counter. The outer loop targets
// 60 Hz, so i mod 2 fires at a nominal 30 Hz, i mod 6 at 10 Hz and i mod 60
// at 1 Hz. Deriving every rate from one counter keeps the sub-systems from
// drifting against each other, which independent timers would not.
const (
	every30Hz = 2
	every10Hz = 6
	every1Hz  = 60
)

// Run is the master scheduler loop. It polls at the configured interval
// (default 1ms) and performs one Tick per iteration, regardless of
// control-surface activity. On context cancellation it performs an orderly
// StopInstance before returning, so a clean shutdown never leaves the
// session stopped but the instance open.
func (d *Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	monitoring.Logf("[sim] scheduler started: poll interval %v", d.pollInterval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[sim] scheduler stopping")
			if err := d.StopInstance(); err != nil {
				monitoring.Logf("[sim] error during shutdown teardown: %v", err)
			}
			return nil
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Tick performs one scheduler iteration under the daemon lock:
//
//	no instance        -> idle
//	no active session  -> rendering-only update, keeps the engine responsive
//	session active     -> one physics step, then component ticks gated by
//	                      i mod N, then the counter advances
//
// Engine errors inside a tick are logged and the remaining work of that
// gating group continues; the scheduler never retries and never tears the
// instance down on its own.
func (d *Daemon) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickLocked()
}

func (d *Daemon) tickLocked() {
	if d.inst == nil {
		return
	}
	if d.sess == nil {
		if err := d.driver.IdleUpdate(); err != nil {
			monitoring.Logf("[sim] idle update failed: %v", err)
		}
		return
	}

	if err := d.driver.StepPhysics(); err != nil {
		monitoring.Logf("[sim] physics step failed: %v", err)
		return
	}

	// 60 Hz
	d.tickComponent(CompClock)

	// 30 Hz
	if d.sess.i%every30Hz == 0 {
		d.tickComponent(CompDiffBase)
		d.tickComponent(CompLidar)
		d.tickComponent(CompTF)
		d.tickComponent(CompTFSensors)
	}

	// 10 Hz
	if d.sess.i%every10Hz == 0 {
		d.tickComponent(CompRGBD)
		if !d.sess.dirty {
			d.evaluateDirtyLocked()
		}
	}

	// 1 Hz
	if d.sess.i%every1Hz == 0 {
		d.sess.collided = d.collisionCheck()
	}

	d.sess.i++
}

// tickComponent fires one manual publish of a registered component.
func (d *Daemon) tickComponent(name string) {
	if err := d.driver.TickComponent(d.registry[name]); err != nil {
		monitoring.Logf("[sim] tick %s failed: %v", name, err)
	}
}
