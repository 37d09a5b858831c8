package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/benchbot-data/simd/internal/httputil"
	"github.com/benchbot-data/simd/internal/pose"
)

// BridgeDriver forwards engine operations to an engine-side bridge process
// over HTTP. Each operation is a single request/response round trip; a non-2xx
// status or transport failure surfaces as an error to the caller.
type BridgeDriver struct {
	baseURL string
	client  httputil.HTTPClient
}

// NewBridgeDriver creates a driver talking to the bridge at baseURL. A nil
// client falls back to the standard library default client.
func NewBridgeDriver(baseURL string, client httputil.HTTPClient) *BridgeDriver {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &BridgeDriver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// post sends a JSON command to the bridge and decodes the reply into out when
// out is non-nil.
func (d *BridgeDriver) post(endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
	}

	resp, err := d.client.Post(d.baseURL+endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bridge %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(endpoint, resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
	}
	return nil
}

// checkStatus converts a non-2xx bridge reply into an error carrying the
// bridge's own message where one was returned.
func checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("bridge %s: %s (status %d)", endpoint, e.Error, resp.StatusCode)
	}
	return fmt.Errorf("bridge %s: status %d", endpoint, resp.StatusCode)
}

// Launch starts the engine, optionally opening an initial map.
func (d *BridgeDriver) Launch(initialMap string) error {
	payload := map[string]string{}
	if initialMap != "" {
		payload["open_map"] = initialMap
	}
	return d.post("/launch", payload, nil)
}

// Close tears down the engine process.
func (d *BridgeDriver) Close() error {
	return d.post("/close", map[string]string{}, nil)
}

// OpenMap loads a map asset.
func (d *BridgeDriver) OpenMap(path string) error {
	return d.post("/open_map", map[string]string{"path": path}, nil)
}

// SpawnAsset references an asset into the world.
func (d *BridgeDriver) SpawnAsset(assetPath, primPath string) error {
	return d.post("/spawn_asset", map[string]string{
		"asset_path": assetPath,
		"prim_path":  primPath,
	}, nil)
}

// SetPose teleports a prim.
func (d *BridgeDriver) SetPose(primPath string, translation r3.Vec, orientation [4]float64) error {
	return d.post("/set_pose", map[string]interface{}{
		"prim_path":   primPath,
		"translation": [3]float64{translation.X, translation.Y, translation.Z},
		"orientation": orientation,
	}, nil)
}

// IdleUpdate advances rendering without physics.
func (d *BridgeDriver) IdleUpdate() error {
	return d.post("/idle_update", map[string]string{}, nil)
}

// PlayPhysics begins physics stepping.
func (d *BridgeDriver) PlayPhysics() error {
	return d.post("/play_physics", map[string]string{}, nil)
}

// StopPhysics halts physics stepping.
func (d *BridgeDriver) StopPhysics() error {
	return d.post("/stop_physics", map[string]string{}, nil)
}

// StepPhysics advances physics by one step.
func (d *BridgeDriver) StepPhysics() error {
	return d.post("/step_physics", map[string]string{}, nil)
}

// DisableAutopublish turns off a component's free-running publisher.
func (d *BridgeDriver) DisableAutopublish(componentPath string) error {
	return d.post("/disable_autopublish", map[string]string{"path": componentPath}, nil)
}

// TickComponent fires one manual component publish.
func (d *BridgeDriver) TickComponent(componentPath string) error {
	return d.post("/tick_component", map[string]string{"path": componentPath}, nil)
}

// AcquirePoseHandle binds a pose-query handle to the prim's articulation root.
func (d *BridgeDriver) AcquirePoseHandle(primPath string) (PoseHandle, error) {
	var out struct {
		Handle string `json:"handle"`
	}
	if err := d.post("/acquire_pose_handle", map[string]string{"prim_path": primPath}, &out); err != nil {
		return nil, err
	}
	if out.Handle == "" {
		return nil, fmt.Errorf("bridge returned empty pose handle for %q", primPath)
	}
	return &bridgePoseHandle{driver: d, handle: out.Handle}, nil
}

// bridgePoseHandle queries a prim's live pose through the bridge.
type bridgePoseHandle struct {
	driver *BridgeDriver
	handle string
}

// QueryPose reads the live pose bound to this handle.
func (h *bridgePoseHandle) QueryPose() (pose.Pose, error) {
	resp, err := h.driver.client.Get(h.driver.baseURL + "/pose?handle=" + url.QueryEscape(h.handle))
	if err != nil {
		return pose.Pose{}, fmt.Errorf("bridge /pose: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("/pose", resp); err != nil {
		return pose.Pose{}, err
	}

	var out struct {
		Pose [7]float64 `json:"pose"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pose.Pose{}, fmt.Errorf("failed to decode /pose response: %w", err)
	}
	return pose.New(out.Pose), nil
}
