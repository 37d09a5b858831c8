package sim

import (
	"fmt"

	"github.com/benchbot-data/simd/internal/monitoring"
	"github.com/benchbot-data/simd/internal/pose"
)

// OpenEnvironment stores the desired map asset (when non-empty) and
// reconciles the engine towards it. Loading is idempotent: if the desired map
// is already loaded the engine call is skipped. A map change invalidates the
// loaded robot and pose, because reloading the world voids every geometry
// reference into it.
//
// Missing preconditions (no instance, no map configured) are logged no-ops;
// engine failures propagate.
func (d *Daemon) OpenEnvironment(mapAsset string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mapAsset != "" {
		d.targetMap = mapAsset
	}
	return d.openEnvironmentLocked()
}

func (d *Daemon) openEnvironmentLocked() error {
	if d.inst == nil {
		monitoring.Logf("[sim] no instance running; stored environment %q but not opening", d.targetMap)
		return nil
	}
	if d.targetMap == "" {
		monitoring.Logf("[sim] no environment selected; returning")
		return nil
	}

	// The engine cannot edit world topology while stepping.
	if err := d.stopSimulationLocked(); err != nil {
		return err
	}

	if d.targetMap != d.loadedMap {
		// World geometry references die with the old map.
		d.loadedRobot = ""
		d.loadedPose = nil

		if err := d.driver.OpenMap(d.targetMap); err != nil {
			return fmt.Errorf("open map %q: %w", d.targetMap, err)
		}
		d.loadedMap = d.targetMap
		d.record("", "map_loaded", d.targetMap)
	} else {
		monitoring.Logf("[sim] skipping map load; %q already loaded", d.targetMap)
	}

	return d.placeRobotLocked()
}

// PlaceRobot stores the desired robot asset and/or start pose (either may be
// omitted) and reconciles: spawn if the robot asset changed, teleport if the
// pose changed, then disable every component's auto-publisher and attempt to
// start the simulation. Each step is skipped when the loaded state already
// matches, so repeated identical requests cost nothing engine-side.
func (d *Daemon) PlaceRobot(robotAsset string, startPose *pose.Pose) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if robotAsset != "" {
		d.targetRobot = robotAsset
	}
	if startPose != nil {
		p := *startPose
		d.targetPose = &p
	}
	return d.placeRobotLocked()
}

func (d *Daemon) placeRobotLocked() error {
	if d.inst == nil {
		monitoring.Logf("[sim] no instance running; stored robot %q but not placing", d.targetRobot)
		return nil
	}
	if d.targetRobot == "" {
		monitoring.Logf("[sim] no robot selected; returning")
		return nil
	}

	if err := d.stopSimulationLocked(); err != nil {
		return err
	}

	p := pose.Default()
	if d.targetPose != nil {
		p = *d.targetPose
	}

	if d.targetRobot != d.loadedRobot {
		if err := d.driver.SpawnAsset(d.targetRobot, RobotPrimPath); err != nil {
			return fmt.Errorf("spawn robot %q: %w", d.targetRobot, err)
		}
		d.loadedRobot = d.targetRobot
		d.record("", "robot_loaded", d.targetRobot)
	} else {
		monitoring.Logf("[sim] skipping robot load; %q already loaded", d.targetRobot)
	}

	if d.loadedPose == nil || !p.Equal(*d.loadedPose) {
		scaled := p.ScaledTranslation(pose.UnitsPerMeter)
		e := scaled.Elements()
		if err := d.driver.SetPose(RobotPrimPath, scaled.Translation, [4]float64{e[0], e[1], e[2], e[3]}); err != nil {
			return fmt.Errorf("set robot pose: %w", err)
		}
		placed := p
		d.loadedPose = &placed
	} else {
		monitoring.Logf("[sim] skipping robot move; already at requested pose")
	}

	// Auto and manual publishing must never run concurrently, so every
	// component is switched to manual before the scheduler starts ticking.
	for _, path := range d.registry.SortedPaths() {
		if err := d.driver.DisableAutopublish(path); err != nil {
			return fmt.Errorf("disable autopublish for %q: %w", path, err)
		}
	}

	return d.startSimulationLocked()
}
