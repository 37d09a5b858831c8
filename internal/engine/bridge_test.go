package engine

import (
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/benchbot-data/simd/internal/httputil"
	"github.com/benchbot-data/simd/internal/pose"
)

func TestBridgeDriverPostsCommands(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	d := NewBridgeDriver("http://bridge:10002/", client)

	if err := d.OpenMap("maps/office.usd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.StepPhysics(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.RequestCount() != 2 {
		t.Fatalf("expected 2 requests, got %d", client.RequestCount())
	}

	req := client.Requests[0]
	if req.URL.String() != "http://bridge:10002/open_map" {
		t.Errorf("unexpected URL %q (trailing slash must be trimmed)", req.URL)
	}
	if !strings.Contains(client.Bodies[0], `"path":"maps/office.usd"`) {
		t.Errorf("unexpected open_map body %q", client.Bodies[0])
	}
}

func TestBridgeDriverSetPoseBody(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	d := NewBridgeDriver("http://bridge:10002", client)

	err := d.SetPose("/robot", r3.Vec{X: 100, Y: 200, Z: 0}, [4]float64{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := client.Bodies[0]
	for _, want := range []string{`"prim_path":"/robot"`, `"translation":[100,200,0]`, `"orientation":[1,0,0,0]`} {
		if !strings.Contains(body, want) {
			t.Errorf("set_pose body %q missing %q", body, want)
		}
	}
}

func TestBridgeDriverSurfacesEngineError(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddResponse(500, `{"error":"no stage loaded"}`)
	d := NewBridgeDriver("http://bridge:10002", client)

	err := d.PlayPhysics()
	if err == nil {
		t.Fatal("expected engine error to propagate")
	}
	if !strings.Contains(err.Error(), "no stage loaded") {
		t.Errorf("expected bridge message in error, got %v", err)
	}
}

func TestBridgeDriverSurfacesTransportError(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddErrorResponse(errors.New("connection refused"))
	d := NewBridgeDriver("http://bridge:10002", client)

	if err := d.IdleUpdate(); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestBridgeDriverLaunchIncludesInitialMap(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	d := NewBridgeDriver("http://bridge:10002", client)

	if err := d.Launch("maps/office.usd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(client.Bodies[0], `"open_map":"maps/office.usd"`) {
		t.Errorf("launch body %q missing initial map", client.Bodies[0])
	}

	if err := d.Launch(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Bodies[1] != "{}" {
		t.Errorf("launch without map should post empty object, got %q", client.Bodies[1])
	}
}

func TestBridgePoseHandleQueriesPose(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddResponse(200, `{"handle":"h-42"}`)
	client.AddResponse(200, `{"pose":[1,0,0,0,10,20,0]}`)
	d := NewBridgeDriver("http://bridge:10002", client)

	h, err := d.AcquirePoseHandle("/robot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := h.QueryPose()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := pose.New([7]float64{1, 0, 0, 0, 10, 20, 0})
	if !p.Equal(want) {
		t.Errorf("expected pose %v, got %v", want.Elements(), p.Elements())
	}

	if got := client.Requests[1].URL.String(); got != "http://bridge:10002/pose?handle=h-42" {
		t.Errorf("unexpected pose query URL %q", got)
	}
}

func TestBridgeDriverRejectsEmptyHandle(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddResponse(200, `{}`)
	d := NewBridgeDriver("http://bridge:10002", client)

	if _, err := d.AcquirePoseHandle("/robot"); err == nil {
		t.Fatal("expected error for empty handle")
	}
}

func TestMockDriverRecordsAndInjects(t *testing.T) {
	m := NewMockDriver()

	if err := m.Launch(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Launched() {
		t.Error("expected mock to report launched")
	}

	m.FailWith("open_map", errors.New("bad state"))
	if err := m.OpenMap("maps/a.usd"); err == nil {
		t.Fatal("expected injected error")
	}
	// Injection is one-shot.
	if err := m.OpenMap("maps/a.usd"); err != nil {
		t.Fatalf("unexpected error after one-shot injection: %v", err)
	}

	if got := m.Count("open_map"); got != 2 {
		t.Errorf("expected open_map count 2, got %d", got)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Launched() {
		t.Error("expected mock to report closed")
	}
}
