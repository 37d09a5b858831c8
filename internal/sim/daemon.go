// Package sim contains the daemon's core: the scene loader, the
// instance/session state machine, the multi-rate tick scheduler and the
// drift monitor.
//
// All shared state lives in a single Daemon aggregate guarded by one mutex.
// The control surface and the scheduler both mutate through that lock, so a
// tick step and a control call can interleave between operations but never
// inside one.
package sim

import (
	"sync"
	"time"

	"github.com/benchbot-data/simd/internal/config"
	"github.com/benchbot-data/simd/internal/engine"
	"github.com/benchbot-data/simd/internal/monitoring"
	"github.com/benchbot-data/simd/internal/pose"
)

// Instance is the capability object for one running engine process. It does
// not exist until StartInstance succeeds; callers check for nil instead of
// consulting a flag.
type Instance struct {
	driver engine.Driver
}

// Session is the capability object for one active physics-stepping interval
// within an Instance. It owns the live pose-query handle and the master tick
// counter; the collided and dirty flags are sticky for the session's life.
type Session struct {
	ID string

	i        uint64
	collided bool
	dirty    bool

	handle engine.PoseHandle
	// placed is the commanded placement pose converted to engine units, the
	// reference the drift monitor compares live poses against.
	placed pose.Pose
}

// Recorder receives session lifecycle and drift events. Recording failures
// are logged by the daemon and never block control flow.
type Recorder interface {
	SessionStarted(id, mapAsset, robotAsset string, placement pose.Pose) error
	SessionStopped(id string) error
	Event(sessionID, kind, detail string) error
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) SessionStarted(string, string, string, pose.Pose) error { return nil }
func (NopRecorder) SessionStopped(string) error                            { return nil }
func (NopRecorder) Event(string, string, string) error                     { return nil }

// Options configures a Daemon. Zero values fall back to the config package
// defaults.
type Options struct {
	Driver   engine.Driver
	Recorder Recorder

	// DirtyMarkerPath is the sentinel file created on the first drift
	// detection of a session.
	DirtyMarkerPath string
	// DirtyEpsilonDist is the planar drift threshold in engine units.
	DirtyEpsilonDist float64
	// DirtyEpsilonYawDeg is the yaw drift threshold in degrees.
	DirtyEpsilonYawDeg float64
	// PollInterval is the outer scheduler loop period.
	PollInterval time.Duration
}

// Daemon is the single owned aggregate holding all mutable simulator state:
// the current Instance and Session, and the scene binding (target vs loaded
// map, robot and pose).
type Daemon struct {
	mu sync.Mutex

	driver   engine.Driver
	rec      Recorder
	registry ComponentRegistry

	// collisionCheck is the collision extension point evaluated at 1 Hz.
	// Swapping this single function is the supported way to add a real
	// collision query; the scheduler wiring does not change.
	collisionCheck func() bool

	markerPath   string
	epsDist      float64
	epsYawDeg    float64
	pollInterval time.Duration

	inst *Instance
	sess *Session

	// Scene binding: desired state as requested by the control surface vs
	// what is actually loaded in the engine. Empty string / nil means unset.
	targetMap   string
	targetRobot string
	targetPose  *pose.Pose
	loadedMap   string
	loadedRobot string
	loadedPose  *pose.Pose
}

// New creates a Daemon around the given engine driver.
func New(opts Options) *Daemon {
	rec := opts.Recorder
	if rec == nil {
		rec = NopRecorder{}
	}
	markerPath := opts.DirtyMarkerPath
	if markerPath == "" {
		markerPath = config.DefaultDirtyMarkerPath
	}
	epsDist := opts.DirtyEpsilonDist
	if epsDist == 0 {
		epsDist = config.DefaultDirtyEpsilonDist
	}
	epsYaw := opts.DirtyEpsilonYawDeg
	if epsYaw == 0 {
		epsYaw = config.DefaultDirtyEpsilonYawDeg
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}

	return &Daemon{
		driver:         opts.Driver,
		rec:            rec,
		registry:       DefaultComponents(),
		collisionCheck: defaultCollisionCheck,
		markerPath:     markerPath,
		epsDist:        epsDist,
		epsYawDeg:      epsYaw,
		pollInterval:   pollInterval,
	}
}

// Started reports whether an engine instance is live. Like the /started
// endpoint it backs, this is inherently racy against in-flight start calls.
func (d *Daemon) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inst != nil
}

// Snapshot is a point-in-time view of the daemon for status reporting.
type Snapshot struct {
	Started     bool   `json:"started"`
	SessionID   string `json:"session_id,omitempty"`
	TickCount   uint64 `json:"tick_count"`
	Dirty       bool   `json:"dirty"`
	Collided    bool   `json:"collided"`
	TargetMap   string `json:"target_map,omitempty"`
	TargetRobot string `json:"target_robot,omitempty"`
	LoadedMap   string `json:"loaded_map,omitempty"`
	LoadedRobot string `json:"loaded_robot,omitempty"`
}

// Status returns a consistent snapshot of instance, session and scene state.
func (d *Daemon) Status() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Started:     d.inst != nil,
		TargetMap:   d.targetMap,
		TargetRobot: d.targetRobot,
		LoadedMap:   d.loadedMap,
		LoadedRobot: d.loadedRobot,
	}
	if d.sess != nil {
		s.SessionID = d.sess.ID
		s.TickCount = d.sess.i
		s.Dirty = d.sess.dirty
		s.Collided = d.sess.collided
	}
	return s
}

// record forwards an event to the recorder, logging failures instead of
// propagating them.
func (d *Daemon) record(sessionID, kind, detail string) {
	if err := d.rec.Event(sessionID, kind, detail); err != nil {
		monitoring.Logf("[sim] failed to record %s event: %v", kind, err)
	}
}
