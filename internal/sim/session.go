package sim

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/benchbot-data/simd/internal/monitoring"
	"github.com/benchbot-data/simd/internal/pose"
)

// StartInstance launches the engine process. When an instance is already
// live the call is a logged no-op. If a target map is configured the engine
// opens it during launch and robot placement is attempted immediately.
func (d *Daemon) StartInstance() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inst != nil {
		monitoring.Logf("[sim] instance already running; stop it first")
		return nil
	}

	if err := d.driver.Launch(d.targetMap); err != nil {
		return fmt.Errorf("launch engine: %w", err)
	}
	d.inst = &Instance{driver: d.driver}
	d.record("", "instance_started", d.targetMap)

	if d.targetMap != "" {
		d.loadedMap = d.targetMap
		return d.placeRobotLocked()
	}
	return nil
}

// StartSimulation transitions InstanceIdle to SessionActive. It requires a
// live instance, a loaded map and a loaded robot; anything missing makes the
// call a logged no-op. An already-active session is stopped first, so the new
// session always starts from a clean counter and flags.
func (d *Daemon) StartSimulation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startSimulationLocked()
}

func (d *Daemon) startSimulationLocked() error {
	if d.sess != nil {
		if err := d.stopSimulationLocked(); err != nil {
			return err
		}
	}
	if d.inst == nil || d.loadedMap == "" || d.loadedRobot == "" {
		monitoring.Logf("[sim] can't start simulation; missing instance, map or robot")
		return nil
	}

	if err := d.driver.PlayPhysics(); err != nil {
		return fmt.Errorf("play physics: %w", err)
	}

	handle, err := d.driver.AcquirePoseHandle(RobotPrimPath)
	if err != nil {
		if stopErr := d.driver.StopPhysics(); stopErr != nil {
			monitoring.Logf("[sim] failed to stop physics after handle error: %v", stopErr)
		}
		return fmt.Errorf("acquire pose handle: %w", err)
	}

	placement := pose.Default()
	if d.loadedPose != nil {
		placement = *d.loadedPose
	}

	// A fresh session starts undirtied; the previous session's marker must
	// not be mistaken for this one's.
	if err := os.Remove(d.markerPath); err != nil && !os.IsNotExist(err) {
		monitoring.Logf("[sim] failed to remove dirty marker %q: %v", d.markerPath, err)
	}

	d.sess = &Session{
		ID:     uuid.New().String(),
		handle: handle,
		placed: placement.ScaledTranslation(pose.UnitsPerMeter),
	}

	if err := d.rec.SessionStarted(d.sess.ID, d.loadedMap, d.loadedRobot, placement); err != nil {
		monitoring.Logf("[sim] failed to record session start: %v", err)
	}
	monitoring.Logf("[sim] session %s started (map=%q robot=%q)", d.sess.ID, d.loadedMap, d.loadedRobot)
	return nil
}

// StopSimulation transitions SessionActive back to InstanceIdle. With no
// active session or no instance it is a logged no-op.
func (d *Daemon) StopSimulation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopSimulationLocked()
}

func (d *Daemon) stopSimulationLocked() error {
	if d.sess == nil {
		monitoring.Logf("[sim] skipping; no running simulation to stop")
		return nil
	}
	if d.inst == nil {
		monitoring.Logf("[sim] skipping; no running instance found")
		return nil
	}

	if err := d.driver.StopPhysics(); err != nil {
		return fmt.Errorf("stop physics: %w", err)
	}

	if err := d.rec.SessionStopped(d.sess.ID); err != nil {
		monitoring.Logf("[sim] failed to record session stop: %v", err)
	}
	monitoring.Logf("[sim] session %s stopped", d.sess.ID)
	d.sess = nil
	return nil
}

// RestartSimulation stops any active session and starts a new one.
func (d *Daemon) RestartSimulation() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.stopSimulationLocked(); err != nil {
		return err
	}
	return d.startSimulationLocked()
}

// StopInstance stops any active session and tears the engine down. It always
// finishes the teardown: engine errors along the way are logged, collected
// and returned, but never leave the instance half-open. The scene binding's
// loaded state dies with the instance; the targets survive so a later
// StartInstance can reconcile back.
func (d *Daemon) StopInstance() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inst == nil {
		monitoring.Logf("[sim] no instance is running to stop")
		return nil
	}

	var firstErr error
	if err := d.stopSimulationLocked(); err != nil {
		monitoring.Logf("[sim] failed to stop simulation during instance teardown: %v", err)
		firstErr = err
		// The session is gone either way; the engine is being torn down.
		d.sess = nil
	}

	if err := d.driver.Close(); err != nil {
		monitoring.Logf("[sim] failed to close engine: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	d.inst = nil
	d.loadedMap = ""
	d.loadedRobot = ""
	d.loadedPose = nil
	d.record("", "instance_stopped", "")
	return firstErr
}
