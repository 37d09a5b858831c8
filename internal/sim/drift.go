package sim

import (
	"fmt"
	"math"
	"os"

	"github.com/benchbot-data/simd/internal/monitoring"
	"github.com/benchbot-data/simd/internal/pose"
)

// evaluateDirtyLocked runs one drift check and latches the session's dirty
// flag. Once set the flag never clears and the check is never evaluated again
// for this session, so the marker file is created at most once.
func (d *Daemon) evaluateDirtyLocked() {
	live, err := d.sess.handle.QueryPose()
	if err != nil {
		monitoring.Logf("[sim] drift check skipped; pose query failed: %v", err)
		return
	}

	// Both poses are in engine units here: the placement pose was scaled at
	// session start and the engine reports live poses natively.
	planar, yawDeg := pose.Delta(d.sess.placed, live)
	if planar <= d.epsDist && math.Abs(yawDeg) <= d.epsYawDeg {
		return
	}

	d.sess.dirty = true
	detail := fmt.Sprintf("planar=%.3f yaw_deg=%.3f", planar, yawDeg)
	monitoring.Logf("[sim] session %s dirty: %s", d.sess.ID, detail)
	d.record(d.sess.ID, "dirty", detail)

	if err := touchFile(d.markerPath); err != nil {
		monitoring.Logf("[sim] failed to create dirty marker %q: %v", d.markerPath, err)
	}
}

// defaultCollisionCheck is the collision placeholder. The engine currently
// exposes no collision query, so it always reports false; install a real
// query by replacing this one function (see Daemon.collisionCheck). The
// scheduler wiring stays as is.
func defaultCollisionCheck() bool {
	return false
}

// touchFile creates the file if it does not exist, leaving an existing file
// untouched.
func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
