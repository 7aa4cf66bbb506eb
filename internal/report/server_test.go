package report

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tailwind/internal/model"
)

// stubPort is a canned ControlPort recording mode requests.
type stubPort struct {
	snap      model.Snapshot
	ok        bool
	modes     []int
	emergency int
}

func (s *stubPort) Snapshot() (model.Snapshot, bool) { return s.snap, s.ok }
func (s *stubPort) Profiles() []model.AssistProfile  { return model.DefaultProfiles() }
func (s *stubPort) RequestMode(i int) bool           { s.modes = append(s.modes, i); return true }
func (s *stubPort) RequestEmergencyStop() bool       { s.emergency++; return true }

func testServer(port ControlPort) *httptest.Server {
	s := NewServer(model.ReportConfig{UpdateRateMs: 50}, port)
	return httptest.NewServer(s.Handler())
}

func TestStatusEndpoint(t *testing.T) {
	port := &stubPort{
		snap: model.Snapshot{
			Mode:     2,
			ModeName: "Tour",
			Motion:   model.MotionMetrics{CadenceRPM: 75, WheelSpeedKmh: 22.5},
			Torque:   model.TorqueSample{TorqueNm: 14.2},
		},
		ok: true,
	}
	ts := testServer(port)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if snap.ModeName != "Tour" || snap.Motion.CadenceRPM != 75 {
		t.Errorf("status = %+v", snap)
	}
}

func TestStatusServesStaleSnapshotOnSkippedRead(t *testing.T) {
	port := &stubPort{snap: model.Snapshot{Mode: 3}, ok: true}
	s := NewServer(model.ReportConfig{UpdateRateMs: 50}, port)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Warm the cache, then make reads time out.
	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	port.ok = false

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Mode != 3 {
		t.Errorf("stale snapshot mode = %d, want 3", snap.Mode)
	}
}

func TestModesEndpoint(t *testing.T) {
	ts := testServer(&stubPort{ok: true})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/modes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Modes []struct {
			Index int    `json:"index"`
			Name  string `json:"name"`
		} `json:"modes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Modes) != 5 || out.Modes[0].Name != "No Assist" || out.Modes[4].Index != 4 {
		t.Errorf("modes = %+v", out.Modes)
	}
}

func TestModeEndpointQueuesRequests(t *testing.T) {
	port := &stubPort{ok: true}
	ts := testServer(port)
	defer ts.Close()

	body := bytes.NewBufferString(`{"mode": 2}`)
	resp, err := http.Post(ts.URL+"/mode", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	body = bytes.NewBufferString(`{"command": "EMERGENCY_STOP"}`)
	resp, err = http.Post(ts.URL+"/mode", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if len(port.modes) != 1 || port.modes[0] != 2 {
		t.Errorf("mode requests = %v, want [2]", port.modes)
	}
	if port.emergency != 1 {
		t.Errorf("emergency requests = %d, want 1", port.emergency)
	}
}

func TestModeEndpointRejectsBadRequests(t *testing.T) {
	ts := testServer(&stubPort{ok: true})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/mode")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /mode status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/mode", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty POST /mode status = %d", resp.StatusCode)
	}
}

func TestRecorderStoresSnapshots(t *testing.T) {
	dir := t.TempDir()
	port := &stubPort{snap: model.Snapshot{Mode: 1, Timestamp: time.Now()}, ok: true}

	rec, err := NewRecorder(model.ReportConfig{
		RideLogPath:  filepath.Join(dir, "rides.db"),
		RideLogEvery: 60000,
	}, port)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Stop()

	for i := 0; i < 3; i++ {
		snap := port.snap
		snap.Timestamp = snap.Timestamp.Add(time.Duration(i) * time.Second)
		if err := rec.record(snap); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	n, err := rec.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("entries = %d, want 3", n)
	}
}
