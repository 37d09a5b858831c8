package engine

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/benchbot-data/simd/internal/pose"
)

// MockDriver is an in-memory Driver used by tests and -dev mode. It records
// every call in order, counts calls per operation, serves a settable live
// pose, and can inject one-shot errors per operation.
type MockDriver struct {
	mu       sync.Mutex
	calls    []string
	counts   map[string]int
	errs     map[string]error
	livePose pose.Pose
	launched bool
}

// NewMockDriver creates a mock driver whose live pose starts at the identity.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		counts:   make(map[string]int),
		errs:     make(map[string]error),
		livePose: pose.Default(),
	}
}

// FailWith injects an error returned by the next call to op (an operation
// name like "open_map"). The injection is one-shot.
func (m *MockDriver) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

// SetLivePose sets the pose returned by handles acquired from this driver.
func (m *MockDriver) SetLivePose(p pose.Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.livePose = p
}

// Calls returns the ordered call log, one entry per driver call, formatted
// "op" or "op arg".
func (m *MockDriver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

// Count returns how many times op was called.
func (m *MockDriver) Count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[op]
}

// Launched reports whether the engine is currently launched.
func (m *MockDriver) Launched() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launched
}

// record logs a call and returns any injected error for the operation.
func (m *MockDriver) record(op, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := op
	if detail != "" {
		entry = op + " " + detail
	}
	m.calls = append(m.calls, entry)
	m.counts[op]++
	if err := m.errs[op]; err != nil {
		delete(m.errs, op)
		return err
	}
	return nil
}

// Launch starts the mock engine.
func (m *MockDriver) Launch(initialMap string) error {
	if err := m.record("launch", initialMap); err != nil {
		return err
	}
	m.mu.Lock()
	m.launched = true
	m.mu.Unlock()
	return nil
}

// Close tears the mock engine down.
func (m *MockDriver) Close() error {
	if err := m.record("close", ""); err != nil {
		return err
	}
	m.mu.Lock()
	m.launched = false
	m.mu.Unlock()
	return nil
}

// OpenMap records a map load.
func (m *MockDriver) OpenMap(path string) error {
	return m.record("open_map", path)
}

// SpawnAsset records an asset spawn.
func (m *MockDriver) SpawnAsset(assetPath, primPath string) error {
	return m.record("spawn_asset", assetPath+" -> "+primPath)
}

// SetPose records a teleport.
func (m *MockDriver) SetPose(primPath string, translation r3.Vec, orientation [4]float64) error {
	return m.record("set_pose", fmt.Sprintf("%s t=(%g,%g,%g)", primPath, translation.X, translation.Y, translation.Z))
}

// IdleUpdate records a render-only update.
func (m *MockDriver) IdleUpdate() error {
	return m.record("idle_update", "")
}

// PlayPhysics records the start of physics stepping.
func (m *MockDriver) PlayPhysics() error {
	return m.record("play_physics", "")
}

// StopPhysics records the halt of physics stepping.
func (m *MockDriver) StopPhysics() error {
	return m.record("stop_physics", "")
}

// StepPhysics records one physics step.
func (m *MockDriver) StepPhysics() error {
	return m.record("step_physics", "")
}

// DisableAutopublish records an autopublish disable.
func (m *MockDriver) DisableAutopublish(componentPath string) error {
	return m.record("disable_autopublish", componentPath)
}

// TickComponent records a manual component tick.
func (m *MockDriver) TickComponent(componentPath string) error {
	return m.record("tick_component", componentPath)
}

// AcquirePoseHandle returns a handle serving the driver's live pose.
func (m *MockDriver) AcquirePoseHandle(primPath string) (PoseHandle, error) {
	if err := m.record("acquire_pose_handle", primPath); err != nil {
		return nil, err
	}
	return &mockPoseHandle{driver: m}, nil
}

// mockPoseHandle reads the mock driver's settable live pose.
type mockPoseHandle struct {
	driver *MockDriver
}

// QueryPose returns the driver's current live pose.
func (h *mockPoseHandle) QueryPose() (pose.Pose, error) {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()
	h.driver.calls = append(h.driver.calls, "query_pose")
	h.driver.counts["query_pose"]++
	if err := h.driver.errs["query_pose"]; err != nil {
		delete(h.driver.errs, "query_pose")
		return pose.Pose{}, err
	}
	return h.driver.livePose, nil
}
