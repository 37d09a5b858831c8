package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/benchbot-data/simd/internal/db"
	"github.com/benchbot-data/simd/internal/engine"
	"github.com/benchbot-data/simd/internal/monitoring"
	"github.com/benchbot-data/simd/internal/sim"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.MockDriver, *sim.Daemon) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	m := engine.NewMockDriver()
	d := sim.New(sim.Options{
		Driver:          m,
		DirtyMarkerPath: filepath.Join(t.TempDir(), "dirty"),
	})
	ts := httptest.NewServer(NewServer(d, nil).ServeMux())
	t.Cleanup(ts.Close)
	return ts, m, d
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHello(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var got string
	decode(t, resp, &got)
	if want := "Hello, I am the simulator daemon"; got != want {
		t.Errorf("unexpected greeting %q", got)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/no_such_route")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStartedReflectsInstanceLifecycle(t *testing.T) {
	ts, _, _ := newTestServer(t)

	check := func(want bool) {
		t.Helper()
		resp, err := http.Get(ts.URL + "/started")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var got map[string]bool
		decode(t, resp, &got)
		if diff := cmp.Diff(map[string]bool{"started": want}, got); diff != "" {
			t.Errorf("unexpected /started payload (-want +got):\n%s", diff)
		}
	}

	check(false)
	if resp := postJSON(t, ts.URL+"/start", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed with status %d", resp.StatusCode)
	}
	check(true)
}

func TestFullLoadFlow(t *testing.T) {
	ts, m, d := newTestServer(t)

	postJSON(t, ts.URL+"/start", "")
	postJSON(t, ts.URL+"/open_environment", `{"environment":"maps/office.usd"}`)
	resp := postJSON(t, ts.URL+"/place_robot", `{"robot":"robots/carter.usd","start_pose":"[1,0,0,0,1,2,0]"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("place_robot failed with status %d", resp.StatusCode)
	}

	st := d.Status()
	if st.LoadedMap != "maps/office.usd" || st.LoadedRobot != "robots/carter.usd" {
		t.Errorf("unexpected binding after load: %+v", st)
	}
	if st.SessionID == "" {
		t.Error("expected placement to start a session")
	}
	if m.Count("spawn_asset") != 1 {
		t.Errorf("expected exactly one spawn, got %d", m.Count("spawn_asset"))
	}
}

func TestPlaceRobotRejectsMalformedPose(t *testing.T) {
	ts, m, _ := newTestServer(t)
	postJSON(t, ts.URL+"/start", "")

	for _, bad := range []string{
		`{"robot":"r","start_pose":"[1,0,0,0,0,0]"}`,
		`{"robot":"r","start_pose":"[a,0,0,0,0,0,0]"}`,
		`{"robot":"r","start_pose":"[0,0,0,0,1,2,3]"}`,
	} {
		resp := postJSON(t, ts.URL+"/place_robot", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", bad, resp.StatusCode)
		}
	}
	if m.Count("spawn_asset") != 0 {
		t.Error("malformed pose must not reach the engine")
	}
}

func TestEngineErrorBecomes500(t *testing.T) {
	ts, m, _ := newTestServer(t)
	postJSON(t, ts.URL+"/start", "")

	m.FailWith("open_map", errors.New("no stage loaded"))
	resp := postJSON(t, ts.URL+"/open_environment", `{"environment":"maps/office.usd"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	var body map[string]string
	decode(t, resp, &body)
	if !strings.Contains(body["error"], "no stage loaded") {
		t.Errorf("expected engine message in error, got %q", body["error"])
	}
}

func TestPreconditionMissIsEmpty200(t *testing.T) {
	ts, _, _ := newTestServer(t)

	// No instance: the daemon stores the target and reports success.
	resp := postJSON(t, ts.URL+"/open_environment", `{"environment":"maps/office.usd"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for stored-but-not-opened, got %d", resp.StatusCode)
	}

	var body map[string]string
	decode(t, resp, &body)
	if diff := cmp.Diff(map[string]string{}, body); diff != "" {
		t.Errorf("expected empty object (-want +got):\n%s", diff)
	}
}

func TestLifecycleRoutesRejectGet(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, route := range []string{"/open_environment", "/place_robot", "/restart_sim", "/start", "/start_sim", "/stop_sim"} {
		resp, err := http.Get(ts.URL + route)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: expected 405, got %d", route, resp.StatusCode)
		}
	}
}

func TestSessionsWithoutStoreIs404(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/sessions")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without store, got %d", resp.StatusCode)
	}
}

func TestSessionsListsFromStore(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	store, err := db.NewDB(filepath.Join(t.TempDir(), "simd.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := engine.NewMockDriver()
	d := sim.New(sim.Options{
		Driver:          m,
		Recorder:        store,
		DirtyMarkerPath: filepath.Join(t.TempDir(), "dirty"),
	})
	ts := httptest.NewServer(NewServer(d, store).ServeMux())
	t.Cleanup(ts.Close)

	postJSON(t, ts.URL+"/start", "")
	postJSON(t, ts.URL+"/open_environment", `{"environment":"maps/office.usd"}`)
	postJSON(t, ts.URL+"/place_robot", `{"robot":"robots/carter.usd"}`)

	resp, err := http.Get(ts.URL + "/sessions?limit=5")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var sessions []db.SessionRecord
	decode(t, resp, &sessions)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].MapAsset != "maps/office.usd" {
		t.Errorf("unexpected session record %+v", sessions[0])
	}

	// Bad limit is rejected at the boundary.
	resp, err = http.Get(ts.URL + "/sessions?limit=zero")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}
