// Package engine defines the driver seam between the daemon and the
// simulation engine. All driver calls are synchronous and may fail with an
// engine-side invalid-state error; the daemon never retries them.
package engine

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/benchbot-data/simd/internal/pose"
)

// PoseHandle is a live handle bound to an asset's articulation root, valid
// for the lifetime of one simulation session.
type PoseHandle interface {
	// QueryPose reads the asset's current pose in engine units.
	QueryPose() (pose.Pose, error)
}

// Driver is the set of engine operations the daemon consumes. Implementations
// are not required to be safe for concurrent use; the scheduler serializes
// all calls behind its lock.
type Driver interface {
	// Launch starts the engine process. When initialMap is non-empty the
	// engine opens that map while launching.
	Launch(initialMap string) error
	// Close tears the engine process down.
	Close() error

	// OpenMap loads a map asset, replacing the current world.
	OpenMap(path string) error
	// SpawnAsset references an asset into the world at the given prim path.
	SpawnAsset(assetPath, primPath string) error
	// SetPose teleports the prim. The translation is in engine units; the
	// orientation quaternion is w, x, y, z.
	SetPose(primPath string, translation r3.Vec, orientation [4]float64) error

	// IdleUpdate advances rendering without physics.
	IdleUpdate() error
	// PlayPhysics begins physics stepping.
	PlayPhysics() error
	// StopPhysics halts physics stepping.
	StopPhysics() error
	// StepPhysics advances physics by one step.
	StepPhysics() error

	// DisableAutopublish turns off a component's free-running publisher so
	// the scheduler can tick it manually.
	DisableAutopublish(componentPath string) error
	// TickComponent fires one manual publish of the component.
	TickComponent(componentPath string) error

	// AcquirePoseHandle binds a live pose-query handle to the prim.
	AcquirePoseHandle(primPath string) (PoseHandle, error)
}
